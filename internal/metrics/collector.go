// Package metrics keeps in-memory timings of the lab pipeline's external
// calls and jobs.
package metrics

import (
	"sync"
	"time"
)

// Operation names.
const (
	OpEmbedding   = "embedding"
	OpArousal     = "arousal"
	OpLLMGenerate = "llm_generate"
	OpChunkLoad   = "chunk_load"
	OpChunkSearch = "chunk_search"
	OpDBQuery     = "db_query"
	OpLabJob      = "lab_job"
)

// tokenOps are the operations whose snapshots include token usage.
var tokenOps = map[string]bool{OpLLMGenerate: true}

type opStats struct {
	count     int64
	failures  int64
	total     time.Duration
	min, max  time.Duration
	inTokens  int64
	outTokens int64
}

func (s *opStats) observe(d time.Duration) {
	if s.count == 0 || d < s.min {
		s.min = d
	}
	s.max = max(s.max, d)
	s.count++
	s.total += d
}

// OperationSnapshot summarizes one operation.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Failures    int64   `json:"failures,omitempty"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`

	InputTokens  int64 `json:"input_tokens,omitempty"`
	OutputTokens int64 `json:"output_tokens,omitempty"`
}

// Snapshot is the state of a Collector at one point in time. Operations
// without any recorded call are absent.
type Snapshot struct {
	UptimeSeconds float64                      `json:"uptime_seconds"`
	Operations    map[string]OperationSnapshot `json:"operations"`
}

// Op returns the snapshot of one operation and whether it was recorded.
func (s Snapshot) Op(name string) (OperationSnapshot, bool) {
	op, ok := s.Operations[name]
	return op, ok
}

// Collector aggregates timings per operation. It is safe for concurrent
// use, and recording on a nil Collector is a no-op.
type Collector struct {
	mu      sync.Mutex
	started time.Time
	ops     map[string]*opStats
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{started: time.Now(), ops: make(map[string]*opStats)}
}

// record runs fn on the stats of op under the lock.
func (c *Collector) record(op string, fn func(*opStats)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.ops[op]
	if !ok {
		s = &opStats{}
		c.ops[op] = s
	}
	fn(s)
}

// RecordTiming records one successful call.
func (c *Collector) RecordTiming(op string, d time.Duration) {
	c.record(op, func(s *opStats) { s.observe(d) })
}

// RecordFailure counts a failed call without timing it.
func (c *Collector) RecordFailure(op string) {
	c.record(op, func(s *opStats) { s.failures++ })
}

// RecordLLMUsage records one generation call with its token usage.
func (c *Collector) RecordLLMUsage(op string, d time.Duration, inputTokens, outputTokens int64) {
	c.record(op, func(s *opStats) {
		s.observe(d)
		s.inTokens += inputTokens
		s.outTokens += outputTokens
	})
}

// Time runs fn and records it as a success or a failure of op. Errors for
// which expected returns true count as successes.
func (c *Collector) Time(op string, fn func() error, expected ...func(error) bool) error {
	start := time.Now()
	err := fn()
	if err != nil && !anyMatch(err, expected) {
		c.RecordFailure(op)
		return err
	}
	c.RecordTiming(op, time.Since(start))
	return err
}

func anyMatch(err error, preds []func(error) bool) bool {
	for _, p := range preds {
		if p(err) {
			return true
		}
	}
	return false
}

// Snapshot returns the current statistics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(c.started).Seconds(),
		Operations:    make(map[string]OperationSnapshot, len(c.ops)),
	}
	for name, s := range c.ops {
		op := OperationSnapshot{
			Count:       s.count,
			Failures:    s.failures,
			TotalTimeMs: s.total.Milliseconds(),
			MinTimeMs:   s.min.Milliseconds(),
			MaxTimeMs:   s.max.Milliseconds(),
		}
		if s.count > 0 {
			op.AvgTimeMs = float64(s.total.Milliseconds()) / float64(s.count)
		}
		if tokenOps[name] {
			op.InputTokens = s.inTokens
			op.OutputTokens = s.outTokens
		}
		snap.Operations[name] = op
	}
	return snap
}
