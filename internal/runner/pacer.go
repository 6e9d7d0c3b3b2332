package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// pacer gates trial starts. One pacer is shared by every session of a run.
type pacer interface {
	Wait(ctx context.Context) error
}

func newPacer(opt Options) pacer {
	if opt.RatePerSecond <= 0 {
		return unpaced{}
	}
	return &uniformPacer{limiter: opt.LimiterFactory(opt.RatePerSecond)}
}

type unpaced struct{}

func (unpaced) Wait(ctx context.Context) error { return ctx.Err() }

// uniformPacer delegates pacing to a rate.Limiter (uniform spacing).
type uniformPacer struct {
	limiter *rate.Limiter
}

func (u *uniformPacer) Wait(ctx context.Context) error {
	if u == nil || u.limiter == nil {
		return nil
	}
	return u.limiter.Wait(ctx)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
