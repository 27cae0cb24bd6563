package arousal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSpace emulates a Gradio space whose prediction is the word count of
// the submitted segment.
type fakeSpace struct {
	mu        sync.Mutex
	sessions  map[string]string
	requests  atomic.Int32
	queueFull atomic.Bool
	noPredict atomic.Bool

	// pairStreams holds each result stream until a second one is open, and
	// fails streams left alone for a second.
	pairStreams atomic.Bool
	streams     atomic.Int32
	paired      chan struct{}
}

func newFakeSpace(t *testing.T) (*fakeSpace, *httptest.Server) {
	t.Helper()
	fs := &fakeSpace{sessions: map[string]string{}, paired: make(chan struct{})}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /config", func(w http.ResponseWriter, r *http.Request) {
		fs.requests.Add(1)
		deps := `[{"api_name":"predict","id":2}]`
		if fs.noPredict.Load() {
			deps = `[{"api_name":"other","id":0}]`
		}
		fmt.Fprintf(w, `{"api_prefix":"/gradio_api","dependencies":%s}`, deps)
	})

	mux.HandleFunc("POST /gradio_api/queue/join", func(w http.ResponseWriter, r *http.Request) {
		fs.requests.Add(1)
		var body struct {
			Data        []string `json:"data"`
			FnIndex     int      `json:"fn_index"`
			SessionHash string   `json:"session_hash"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.FnIndex != 2 || len(body.Data) != 1 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if strings.Contains(body.Data[0], "boom") {
			http.Error(w, "model crashed", http.StatusInternalServerError)
			return
		}
		fs.mu.Lock()
		fs.sessions[body.SessionHash] = body.Data[0]
		fs.mu.Unlock()
		fmt.Fprintf(w, `{"event_id":"ev-%s"}`, body.SessionHash)
	})

	mux.HandleFunc("GET /gradio_api/queue/data", func(w http.ResponseWriter, r *http.Request) {
		fs.requests.Add(1)
		hash := r.URL.Query().Get("session_hash")
		fs.mu.Lock()
		text, ok := fs.sessions[hash]
		fs.mu.Unlock()
		if !ok {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}

		if fs.pairStreams.Load() {
			if fs.streams.Add(1) == 2 {
				close(fs.paired)
			}
			select {
			case <-fs.paired:
			case <-time.After(time.Second):
				http.Error(w, "stream left alone", http.StatusGatewayTimeout)
				return
			}
		}

		w.Header().Set("Content-Type", "text/event-stream")
		if fs.queueFull.Load() {
			fmt.Fprint(w, "data: {\"msg\":\"queue_full\"}\n\n")
			return
		}
		words := len(strings.Fields(text))
		fmt.Fprint(w, "data: {\"msg\":\"estimation\",\"rank\":0}\n\n")
		fmt.Fprint(w, "data: {\"msg\":\"process_completed\",\"event_id\":\"someone-else\",\"output\":{\"data\":[0.0, 99.0]}}\n\n")
		fmt.Fprintf(w, "data: {\"msg\":\"process_completed\",\"event_id\":\"ev-%s\",\"output\":{\"data\":[0.1, %d]}}\n\n", hash, words)
		fmt.Fprint(w, "data: {\"msg\":\"close_stream\"}\n\n")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fs, srv
}

func newTestClient(url string) *GradioClient {
	return NewGradioClient(GradioConfig{
		BaseURL:        url,
		RequestTimeout: 2 * time.Second,
		StreamTimeout:  2 * time.Second,
	}, nil)
}

func TestGradioClient_ScoreAveragesHalves(t *testing.T) {
	_, srv := newFakeSpace(t)
	c := newTestClient(srv.URL)

	score, err := c.Score(context.Background(), "one two three four")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, score, 1e-9)

	score, err = c.Score(context.Background(), "a b c")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, score, 1e-9)
}

func TestGradioClient_ScoresHalvesConcurrently(t *testing.T) {
	fs, srv := newFakeSpace(t)
	fs.pairStreams.Store(true)
	c := newTestClient(srv.URL)

	score, err := c.Score(context.Background(), "the sea rose and the mast split")
	require.NoError(t, err, "both halves must be in flight together")
	assert.InDelta(t, 3.5, score, 1e-9)
}

func TestGradioClient_EmptyTextSkipsSpace(t *testing.T) {
	fs, srv := newFakeSpace(t)
	c := newTestClient(srv.URL)

	score, err := c.Score(context.Background(), "  \n\t ")
	require.NoError(t, err)
	assert.Equal(t, MinScore, score)
	assert.Zero(t, fs.requests.Load())
}

func TestGradioClient_OneFailedHalfStillScores(t *testing.T) {
	_, srv := newFakeSpace(t)
	c := newTestClient(srv.URL)

	score, err := c.Score(context.Background(), "boom x calm y")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, score, 1e-9)

	_, err = c.Score(context.Background(), "boom boom")
	assert.Error(t, err)
}

func TestGradioClient_QueueFull(t *testing.T) {
	fs, srv := newFakeSpace(t)
	fs.queueFull.Store(true)
	c := newTestClient(srv.URL)

	_, err := c.Score(context.Background(), "the storm broke")
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestGradioClient_Ready(t *testing.T) {
	fs, srv := newFakeSpace(t)
	fs.noPredict.Store(true)
	assert.ErrorIs(t, newTestClient(srv.URL).Ready(context.Background()), ErrNoPredictRoute)

	fs.noPredict.Store(false)
	assert.NoError(t, newTestClient(srv.URL).Ready(context.Background()))

	assert.ErrorIs(t, newTestClient("").Ready(context.Background()), ErrNotConfigured)
}

func TestGradioClient_CachesMetadata(t *testing.T) {
	fs, srv := newFakeSpace(t)
	c := newTestClient(srv.URL)
	require.NoError(t, c.Ready(context.Background()))
	require.NoError(t, c.Ready(context.Background()))
	assert.Equal(t, int32(1), fs.requests.Load())
}

func TestSplitHalves(t *testing.T) {
	assert.Nil(t, splitHalves("   "))
	assert.Equal(t, []string{"solo"}, splitHalves(" solo "))
	assert.Equal(t, []string{"a b", "c d e"}, splitHalves("a b\nc  d e"))
}

func TestPredictionValue(t *testing.T) {
	v, err := predictionValue([]json.RawMessage{json.RawMessage(`0.7`)})
	require.NoError(t, err)
	assert.Equal(t, 0.7, v)

	_, err = predictionValue(nil)
	assert.ErrorIs(t, err, ErrNoPrediction)

	_, err = predictionValue([]json.RawMessage{json.RawMessage(`0.1`), json.RawMessage(`"high"`)})
	assert.ErrorIs(t, err, ErrNoPrediction)
}
