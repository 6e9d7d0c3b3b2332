package metrics

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/pagefire/internal/browser"
)

// ErrNoData is returned by Stats when no trial has been recorded.
var ErrNoData = errors.New("no trial data recorded")

// Trial is one completed page-load measurement.
type Trial struct {
	Worker   int                       `json:"browser" yaml:"browser"`
	Number   int                       `json:"times" yaml:"times"`
	Duration time.Duration             `json:"-" yaml:"-"`
	End      time.Time                 `json:"end_time" yaml:"end_time"`
	Timing   *browser.NavigationTiming `json:"navigation_timing,omitempty" yaml:"navigation_timing,omitempty"`
}

// DurationMs returns the trial duration in whole milliseconds.
func (t Trial) DurationMs() int64 {
	return t.Duration.Milliseconds()
}

// Collector is the shared result set for a run. Records are append-only and the
// collector is safe for concurrent use by all session workers.
type Collector struct {
	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	trials       []Trial
	durations    map[int][]time.Duration
	failures     map[int]error
	errorsByType map[string]int64
	sum          time.Duration
	start        time.Time
}

// WorkerStats summarizes a single session.
type WorkerStats struct {
	Worker        int     `json:"worker" yaml:"worker"`
	Trials        int     `json:"trials" yaml:"trials"`
	MeanLatencyMs float64 `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	MinLatencyMs  float64 `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
	Error         string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Stats represents aggregated metrics over every recorded trial.
type Stats struct {
	Total          int64         `json:"total" yaml:"total"`
	FailedSessions int           `json:"failed_sessions" yaml:"failed_sessions"`
	Incomplete     bool          `json:"incomplete" yaml:"incomplete"`
	MinLatency     time.Duration `json:"-" yaml:"-"`
	MaxLatency     time.Duration `json:"-" yaml:"-"`
	MeanLatency    time.Duration `json:"-" yaml:"-"`
	P50Latency     time.Duration `json:"-" yaml:"-"`
	P90Latency     time.Duration `json:"-" yaml:"-"`
	P95Latency     time.Duration `json:"-" yaml:"-"`
	P99Latency     time.Duration `json:"-" yaml:"-"`
	Duration       time.Duration `json:"-" yaml:"-"`
	TrialsPerSec   float64       `json:"trials_per_sec" yaml:"trials_per_sec"`

	// JSON-friendly millisecond fields. MeanLatencyMs is rounded to two decimals.
	MinLatencyMs  float64        `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64        `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64        `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64        `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64        `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P95LatencyMs  float64        `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	P99LatencyMs  float64        `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	DurationMs    float64        `json:"duration_ms" yaml:"duration_ms"`
	Workers       []WorkerStats  `json:"workers,omitempty" yaml:"workers,omitempty"`
	Errors        map[string]int `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func NewCollector() *Collector {
	// Track page loads from 1µs up to 10 minutes with 3 significant figures.
	h := hdrhistogram.New(1, 600_000_000, 3)
	return &Collector{
		hist:         h,
		durations:    make(map[int][]time.Duration),
		failures:     make(map[int]error),
		errorsByType: make(map[string]int64),
		start:        time.Now(),
	}
}

// Start resets the reference time used for throughput.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
}

// StartedAt returns the reference time set by Start.
func (c *Collector) StartedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start
}

// Record appends a completed trial to the sequence and to its worker's durations.
func (c *Collector) Record(t Trial) {
	if t.Duration < 0 {
		t.Duration = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.trials = append(c.trials, t)
	c.durations[t.Worker] = append(c.durations[t.Worker], t.Duration)
	c.sum += t.Duration

	us := t.Duration.Microseconds()
	if us < c.hist.LowestTrackableValue() {
		us = c.hist.LowestTrackableValue()
	}
	if us > c.hist.HighestTrackableValue() {
		us = c.hist.HighestTrackableValue()
	}
	_ = c.hist.RecordValue(us)
}

// RecordFailure marks a worker as failed. Only the first failure per worker is kept.
func (c *Collector) RecordFailure(worker int, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, seen := c.failures[worker]; seen {
		return
	}
	c.failures[worker] = err
	c.errorsByType[ErrorLabel(err)]++
}

// Trials returns a copy of the recorded trials in completion order.
func (c *Collector) Trials() []Trial {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Trial(nil), c.trials...)
}

// Count returns the number of recorded trials.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.trials)
}

// Durations returns a copy of one worker's durations in trial order.
func (c *Collector) Durations(worker int) []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.durations[worker]...)
}

// DurationsByWorker returns a copy of every worker's durations.
func (c *Collector) DurationsByWorker() map[int][]time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int][]time.Duration, len(c.durations))
	for w, d := range c.durations {
		out[w] = append([]time.Duration(nil), d...)
	}
	return out
}

// Failures returns the recorded worker failures.
func (c *Collector) Failures() map[int]error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]error, len(c.failures))
	for w, err := range c.failures {
		out[w] = err
	}
	return out
}

// Stats computes aggregated statistics over the flattened set of durations.
// When nothing was recorded it returns the failure bookkeeping together with
// ErrNoData.
func (c *Collector) Stats(elapsed time.Duration) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := int64(len(c.trials))
	stats := Stats{
		Total:          total,
		FailedSessions: len(c.failures),
		Incomplete:     len(c.failures) > 0,
		Duration:       elapsed,
		DurationMs:     toMs(elapsed),
		Workers:        c.workerStats(),
	}
	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}
	if total == 0 {
		return stats, ErrNoData
	}

	minLatency, maxLatency := c.trials[0].Duration, c.trials[0].Duration
	for _, t := range c.trials[1:] {
		if t.Duration < minLatency {
			minLatency = t.Duration
		}
		if t.Duration > maxLatency {
			maxLatency = t.Duration
		}
	}
	stats.MinLatency = minLatency
	stats.MaxLatency = maxLatency
	stats.MeanLatency = time.Duration(int64(c.sum) / total)

	stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
	stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
	stats.P95Latency = time.Duration(c.hist.ValueAtQuantile(95)) * time.Microsecond
	stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond

	stats.MinLatencyMs = toMs(stats.MinLatency)
	stats.MaxLatencyMs = toMs(stats.MaxLatency)
	stats.MeanLatencyMs = round2(toMs(c.sum) / float64(total))
	stats.P50LatencyMs = toMs(stats.P50Latency)
	stats.P90LatencyMs = toMs(stats.P90Latency)
	stats.P95LatencyMs = toMs(stats.P95Latency)
	stats.P99LatencyMs = toMs(stats.P99Latency)

	if elapsed > 0 {
		stats.TrialsPerSec = float64(total) / elapsed.Seconds()
	}
	return stats, nil
}

// workerStats must be called with c.mu held.
func (c *Collector) workerStats() []WorkerStats {
	seen := make(map[int]struct{}, len(c.durations)+len(c.failures))
	for w := range c.durations {
		seen[w] = struct{}{}
	}
	for w := range c.failures {
		seen[w] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}

	workers := make([]int, 0, len(seen))
	for w := range seen {
		workers = append(workers, w)
	}
	sort.Ints(workers)

	out := make([]WorkerStats, 0, len(workers))
	for _, w := range workers {
		ws := WorkerStats{Worker: w}
		if err, ok := c.failures[w]; ok {
			ws.Error = err.Error()
		}
		durations := c.durations[w]
		ws.Trials = len(durations)
		if len(durations) > 0 {
			var sum time.Duration
			lo, hi := durations[0], durations[0]
			for _, d := range durations {
				sum += d
				if d < lo {
					lo = d
				}
				if d > hi {
					hi = d
				}
			}
			ws.MeanLatencyMs = round2(toMs(sum) / float64(len(durations)))
			ws.MinLatencyMs = toMs(lo)
			ws.MaxLatencyMs = toMs(hi)
		}
		out = append(out, ws)
	}
	return out
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
