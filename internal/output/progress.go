package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/pagefire/internal/metrics"
)

// ProgressReporter displays a single self-overwriting progress line.
type ProgressReporter struct {
	collector *metrics.Collector
	expected  int
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
// expected is the number of trials a complete run records.
func NewProgressReporter(collector *metrics.Collector, expected int, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		expected:  expected,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, p.line())
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) line() string {
	stats, err := p.collector.Stats(time.Since(p.collector.StartedAt()))
	line := fmt.Sprintf("\rTrials: %d/%d | Failed sessions: %d | Trials/sec: %.1f",
		stats.Total, p.expected, stats.FailedSessions, stats.TrialsPerSec)
	if err == nil {
		line += fmt.Sprintf(" | Mean: %.2fms | P95: %.0fms", stats.MeanLatencyMs, stats.P95LatencyMs)
	}
	return line
}
