package runner

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/torosent/pagefire/internal/browser"
	"github.com/torosent/pagefire/internal/metrics"
	"github.com/torosent/pagefire/internal/tracing"
)

// session is one worker: an isolated browser context and page used for Repeat
// sequential trials.
type session struct {
	opt     *Options
	pacer   pacer
	worker  int       // 1-based label
	firstAt time.Time // run start plus this worker's stagger
	trials  *int64

	bc   browser.Context
	page browser.Page
}

// open creates the session's context and page. Every session is opened before
// the run starts; staggers count from the run start.
func (s *session) open(ctx context.Context, b browser.Browser) error {
	bc, err := b.NewContext(ctx)
	if err != nil {
		return s.fail(0, "open context", err)
	}
	s.bc = bc

	page, err := bc.NewPage(ctx)
	if err != nil {
		return s.fail(0, "open page", err)
	}
	page.SetDefaultTimeout(s.opt.PageTimeout)
	s.page = page
	return nil
}

func (s *session) close() {
	if s.bc == nil {
		return
	}
	if err := s.bc.Close(); err != nil {
		s.opt.Logger.Warn("closing session failed", "worker", s.worker, "error", err)
	}
}

func (s *session) run(ctx context.Context) error {
	page := s.page
	if err := sleep(ctx, time.Until(s.firstAt)); err != nil {
		return s.fail(1, "stagger", err)
	}

	for n := 1; n <= s.opt.Repeat; n++ {
		if err := s.trial(ctx, page, n); err != nil {
			return err
		}
	}
	return nil
}

// trial performs one timed load followed by the reset to about:blank.
func (s *session) trial(ctx context.Context, page browser.Page, n int) error {
	if err := s.pacer.Wait(ctx); err != nil {
		return s.fail(n, "pace", err)
	}

	target := s.opt.URLExpander(s.opt.TargetURL)
	spanCtx, span := tracing.StartTrialSpan(ctx, s.opt.Tracer, s.worker, n, target)
	if s.opt.Propagate {
		headers := http.Header{}
		tracing.InjectHTTPHeaders(spanCtx, headers)
		if err := page.SetExtraHeaders(spanCtx, headers); err != nil {
			tracing.EndSpan(span, err)
			return s.fail(n, "trace headers", err)
		}
	}

	start := time.Now()
	err := page.Goto(spanCtx, target)
	if err == nil && s.opt.WaitText != "" {
		_, err = page.WaitForText(spanCtx, s.opt.WaitText)
	}
	end := time.Now()
	if err != nil {
		tracing.EndSpan(span, err)
		return s.fail(n, "load", err)
	}

	t := metrics.Trial{
		Worker:   s.worker,
		Number:   n,
		Duration: end.Sub(start).Truncate(time.Millisecond),
		End:      end,
	}
	if s.opt.NavigationTiming {
		timing, terr := page.NavigationTiming(spanCtx)
		if terr != nil {
			s.opt.Logger.Warn("navigation timing unavailable", "worker", s.worker, "trial", n, "error", terr)
		} else {
			t.Timing = &timing
		}
	}
	tracing.EndSpan(span, nil, attribute.Int64("pagefire.duration_ms", t.DurationMs()))

	s.opt.Recorder.Record(t)
	atomic.AddInt64(s.trials, 1)
	s.opt.Observer.TrialCompleted(t)

	if err := page.Goto(ctx, browser.BlankURL); err != nil {
		return s.fail(n, "reset", err)
	}
	return nil
}

func (s *session) fail(n int, op string, err error) error {
	return &TrialError{Worker: s.worker, Trial: n, Op: op, Err: err}
}
