package arousal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/litlab/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	defaultAPIPrefix      = "/gradio_api"
	defaultRequestTimeout = 30 * time.Second
	defaultStreamTimeout  = 60 * time.Second
	predictAPIName        = "predict"
)

// Errors returned by the Gradio client.
var (
	ErrNotConfigured  = errors.New("arousal space URL not configured")
	ErrQueueFull      = errors.New("arousal queue is full")
	ErrNoPrediction   = errors.New("arousal response missing data")
	ErrStreamEnded    = errors.New("arousal stream ended without completion")
	ErrNoPredictRoute = errors.New("arousal space has no predict endpoint")
)

// GradioConfig configures a GradioClient.
type GradioConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	StreamTimeout  time.Duration
	HTTPClient     *http.Client
}

// GradioClient scores passages against a regression model hosted as a
// Gradio space, using the queue join plus server-sent-events protocol.
type GradioClient struct {
	baseURL        string
	http           *http.Client
	requestTimeout time.Duration
	streamTimeout  time.Duration
	metrics        *metrics.Collector

	mu        sync.Mutex
	apiPrefix string
	fnIndex   int
	resolved  bool
}

var _ Scorer = (*GradioClient)(nil)

// NewGradioClient creates a client for the space at cfg.BaseURL.
func NewGradioClient(cfg GradioConfig, m *metrics.Collector) *GradioClient {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = defaultStreamTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &GradioClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		http:           cfg.HTTPClient,
		requestTimeout: cfg.RequestTimeout,
		streamTimeout:  cfg.StreamTimeout,
		metrics:        m,
	}
}

// Ready resolves the space metadata and reports whether scoring can work.
func (c *GradioClient) Ready(ctx context.Context) error {
	_, _, err := c.metadata(ctx)
	return err
}

// Score returns the arousal of text. The passage is split at its word
// midpoint, both halves are scored concurrently, and the successful scores
// are averaged. Empty text scores MinScore without contacting the space.
func (c *GradioClient) Score(ctx context.Context, text string) (float64, error) {
	segments := splitHalves(text)
	if len(segments) == 0 {
		return MinScore, nil
	}

	start := time.Now()
	values := make([]float64, len(segments))
	errs := make([]error, len(segments))
	var g errgroup.Group
	for i, seg := range segments {
		g.Go(func() error {
			values[i], errs[i] = c.scoreSegment(ctx, seg)
			if errs[i] != nil {
				slog.Debug("arousal segment failed", "segment_len", len(seg), "error", errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	var sum float64
	var scored int
	for i, err := range errs {
		if err == nil {
			sum += values[i]
			scored++
		}
	}
	if scored == 0 {
		c.metrics.RecordFailure(metrics.OpArousal)
		return 0, fmt.Errorf("score passage: %w", errors.Join(errs...))
	}
	c.metrics.RecordTiming(metrics.OpArousal, time.Since(start))
	return sum / float64(scored), nil
}

// metadata fetches and caches the API prefix and predict fn index.
func (c *GradioClient) metadata(ctx context.Context) (string, int, error) {
	if c.baseURL == "" {
		return "", 0, ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return c.apiPrefix, c.fnIndex, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/config", nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("fetch space config: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("fetch space config: status %d", resp.StatusCode)
	}

	var cfg struct {
		APIPrefix    string `json:"api_prefix"`
		Dependencies []struct {
			APIName string `json:"api_name"`
			ID      *int   `json:"id"`
		} `json:"dependencies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return "", 0, fmt.Errorf("decode space config: %w", err)
	}

	fnIndex := -1
	for _, dep := range cfg.Dependencies {
		if dep.APIName == predictAPIName && dep.ID != nil {
			fnIndex = *dep.ID
			break
		}
	}
	if fnIndex < 0 {
		return "", 0, ErrNoPredictRoute
	}

	c.apiPrefix = cfg.APIPrefix
	if c.apiPrefix == "" {
		c.apiPrefix = defaultAPIPrefix
	}
	c.fnIndex = fnIndex
	c.resolved = true
	slog.Info("arousal space resolved", "base_url", c.baseURL, "api_prefix", c.apiPrefix, "fn_index", fnIndex)
	return c.apiPrefix, c.fnIndex, nil
}

// scoreSegment joins the queue for one segment and waits for its result.
func (c *GradioClient) scoreSegment(ctx context.Context, text string) (float64, error) {
	prefix, fnIndex, err := c.metadata(ctx)
	if err != nil {
		return 0, err
	}

	sessionHash := strings.ReplaceAll(uuid.New().String(), "-", "")
	eventID, err := c.joinQueue(ctx, prefix, fnIndex, sessionHash, text)
	if err != nil {
		return 0, err
	}
	return c.awaitResult(ctx, prefix, sessionHash, eventID)
}

func (c *GradioClient) joinQueue(ctx context.Context, prefix string, fnIndex int, sessionHash, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"data":         []string{text},
		"fn_index":     fnIndex,
		"session_hash": sessionHash,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+prefix+"/queue/join", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("join queue: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("join queue: status %d", resp.StatusCode)
	}

	var joined struct {
		EventID string `json:"event_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&joined); err != nil {
		return "", fmt.Errorf("decode queue join: %w", err)
	}
	if joined.EventID == "" {
		return "", errors.New("join queue: no event id returned")
	}
	return joined.EventID, nil
}

type queueMessage struct {
	Msg     string `json:"msg"`
	EventID string `json:"event_id"`
	Output  struct {
		Data []json.RawMessage `json:"data"`
	} `json:"output"`
}

func (c *GradioClient) awaitResult(ctx context.Context, prefix, sessionHash, eventID string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.streamTimeout)
	defer cancel()

	u := c.baseURL + prefix + "/queue/data?" + url.Values{"session_hash": {sessionHash}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("open queue stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("open queue stream: status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}

		var msg queueMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return 0, fmt.Errorf("decode queue message: %w", err)
		}

		switch msg.Msg {
		case "queue_full":
			return 0, ErrQueueFull
		case "process_completed":
			if msg.EventID != eventID {
				continue
			}
			return predictionValue(msg.Output.Data)
		case "close_stream":
			return 0, ErrStreamEnded
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read queue stream: %w", err)
	}
	return 0, ErrStreamEnded
}

// predictionValue prefers the second output (the unnormalized scale) when
// the model returns two values.
func predictionValue(data []json.RawMessage) (float64, error) {
	if len(data) == 0 {
		return 0, ErrNoPrediction
	}
	raw := data[0]
	if len(data) > 1 {
		raw = data[1]
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrNoPrediction, string(raw))
	}
	return v, nil
}

// splitHalves splits text at its word midpoint. Single-word text yields one
// segment and blank text yields none.
func splitHalves(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) == 1 {
		return []string{words[0]}
	}
	mid := len(words) / 2
	return []string{
		strings.Join(words[:mid], " "),
		strings.Join(words[mid:], " "),
	}
}
