package runner

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/torosent/pagefire/internal/browser"
)

// Result captures execution summary.
type Result struct {
	Trials         int64
	FailedSessions int64
	Started        time.Time
	Finished       time.Time
	Duration       time.Duration
}

// Runner launches one browser and drives Parallel sessions against it.
type Runner struct {
	opt   Options
	pacer pacer
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt, pacer: newPacer(opt)}
}

// Run executes the whole load test and returns once every session has finished.
// The returned error is the first session failure, if any; trials recorded before
// it remain in the Recorder.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.opt.Engine == nil {
		return Result{}, ErrNoEngine
	}

	b, err := r.opt.Engine.Launch(ctx, r.opt.Launch)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			r.opt.Logger.Warn("closing browser failed", "error", cerr)
		}
	}()

	var trials, failed int64

	sessions := make([]*session, r.opt.Parallel)
	openErrs := make([]error, r.opt.Parallel)
	var opening errgroup.Group
	for k := range sessions {
		s := &session{
			opt:    &r.opt,
			pacer:  r.pacer,
			worker: k + 1,
			trials: &trials,
		}
		sessions[k] = s
		opening.Go(func() error {
			openErrs[k] = s.open(ctx, b)
			return nil
		})
	}
	_ = opening.Wait()

	start := time.Now()
	r.opt.Observer.RunStarted(start)
	r.opt.Logger.Debug("run started",
		"parallel", r.opt.Parallel,
		"repeat", r.opt.Repeat,
		"open_delay", r.opt.OpenDelay,
	)

	g := &errgroup.Group{}
	runCtx := ctx
	if r.opt.FailFast {
		g, runCtx = errgroup.WithContext(ctx)
	}

	for k, s := range sessions {
		s.firstAt = start.Add(time.Duration(k) * r.opt.OpenDelay)
		g.Go(func() error {
			defer s.close()
			err := openErrs[k]
			if err == nil {
				err = s.run(runCtx)
			}
			if err != nil {
				atomic.AddInt64(&failed, 1)
				r.opt.Recorder.RecordFailure(s.worker, err)
				r.opt.Logger.Error("session failed", "worker", s.worker, "error", err)
			}
			return err
		})
	}
	err = g.Wait()

	finish := time.Now()
	r.opt.Observer.RunFinished(finish)

	return Result{
		Trials:         atomic.LoadInt64(&trials),
		FailedSessions: atomic.LoadInt64(&failed),
		Started:        start,
		Finished:       finish,
		Duration:       finish.Sub(start),
	}, err
}

// Smoke launches the browser, opens one isolated page on about:blank and closes
// everything again.
func Smoke(ctx context.Context, engine browser.Engine, opts browser.LaunchOptions, timeout time.Duration) error {
	b, err := engine.Launch(ctx, opts)
	if err != nil {
		return err
	}
	defer b.Close()

	bc, err := b.NewContext(ctx)
	if err != nil {
		return err
	}
	defer bc.Close()

	page, err := bc.NewPage(ctx)
	if err != nil {
		return err
	}
	page.SetDefaultTimeout(timeout)
	return page.Goto(ctx, browser.BlankURL)
}
