package runner

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/torosent/pagefire/internal/browser"
	"github.com/torosent/pagefire/internal/metrics"
)

// Recorder receives completed trials and worker failures. *metrics.Collector
// satisfies it.
type Recorder interface {
	Record(t metrics.Trial)
	RecordFailure(worker int, err error)
}

// Observer is notified as the run progresses. Calls for different workers may
// arrive concurrently.
type Observer interface {
	RunStarted(at time.Time)
	TrialCompleted(t metrics.Trial)
	RunFinished(at time.Time)
}

// Options configure the Runner.
type Options struct {
	TargetURL   string        // page to load (required)
	Parallel    int           // number of concurrent sessions
	Repeat      int           // trials per session
	OpenDelay   time.Duration // stagger between consecutive session starts
	WaitText    string        // optional readiness text
	PageTimeout time.Duration // bound for every browser operation

	Engine   browser.Engine // browser implementation (required)
	Launch   browser.LaunchOptions
	Recorder Recorder
	Observer Observer
	Logger   *slog.Logger

	Tracer    trace.Tracer
	Propagate bool // attach W3C trace headers to page requests

	RatePerSecond    int                         // trial starts per second across sessions (0 means unlimited)
	LimiterFactory   func(rps int) *rate.Limiter // optional injection for tests
	FailFast         bool                        // cancel remaining sessions after the first failure
	URLExpander      func(target string) string  // per-trial URL rewriting, e.g. placeholders
	NavigationTiming bool                        // capture Navigation Timing after each load
}

func (o *Options) normalize() {
	if o.Parallel <= 0 {
		o.Parallel = 1
	}
	if o.Repeat <= 0 {
		o.Repeat = 1
	}
	if o.OpenDelay < 0 {
		o.OpenDelay = 0
	}
	if o.PageTimeout <= 0 {
		o.PageTimeout = browser.DefaultTimeout
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.Recorder == nil {
		o.Recorder = metrics.NewCollector()
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("pagefire")
	}
	if o.URLExpander == nil {
		o.URLExpander = func(target string) string { return target }
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst of one keeps trial starts evenly spaced across sessions.
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type nopObserver struct{}

func (nopObserver) RunStarted(time.Time)         {}
func (nopObserver) TrialCompleted(metrics.Trial) {}
func (nopObserver) RunFinished(time.Time)        {}

// Observers fans every notification out to each non-nil observer in order.
func Observers(observers ...Observer) Observer {
	list := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) RunStarted(at time.Time) {
	for _, o := range m {
		o.RunStarted(at)
	}
}

func (m multiObserver) TrialCompleted(t metrics.Trial) {
	for _, o := range m {
		o.TrialCompleted(t)
	}
}

func (m multiObserver) RunFinished(at time.Time) {
	for _, o := range m {
		o.RunFinished(at)
	}
}
