package runner_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/torosent/pagefire/internal/browser"
)

var errUnreachable = errors.New("net::ERR_CONNECTION_REFUSED")

// fakeEngine is an in-memory browser.Engine. Pages are numbered in creation order
// starting at 1.
type fakeEngine struct {
	latency    time.Duration // per navigation to a non-blank URL
	failPage   int64         // page number whose first load fails, 0 for none
	hangOnText bool          // WaitForText on the failing page blocks until its timeout
	launchErr  error
	timing     browser.NavigationTiming
	openDelay  time.Duration // NewContext latency, serialized across the browser

	openMu   sync.Mutex

	mu       sync.Mutex
	pages    []*fakePage
	contexts int64
	closed   int64
	browsers int64
	bclosed  int64
}

func (e *fakeEngine) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	if e.launchErr != nil {
		return nil, e.launchErr
	}
	atomic.AddInt64(&e.browsers, 1)
	return &fakeBrowser{engine: e}, nil
}

func (e *fakeEngine) allPages() []*fakePage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*fakePage(nil), e.pages...)
}

type fakeBrowser struct {
	engine *fakeEngine
}

func (b *fakeBrowser) NewContext(ctx context.Context) (browser.Context, error) {
	if b.engine.openDelay > 0 {
		b.engine.openMu.Lock()
		time.Sleep(b.engine.openDelay)
		b.engine.openMu.Unlock()
	}
	atomic.AddInt64(&b.engine.contexts, 1)
	return &fakeContext{engine: b.engine}, nil
}

func (b *fakeBrowser) Close() error {
	atomic.AddInt64(&b.engine.bclosed, 1)
	return nil
}

type fakeContext struct {
	engine *fakeEngine
}

func (c *fakeContext) NewPage(ctx context.Context) (browser.Page, error) {
	c.engine.mu.Lock()
	defer c.engine.mu.Unlock()
	p := &fakePage{engine: c.engine, number: int64(len(c.engine.pages) + 1), timeout: browser.DefaultTimeout}
	c.engine.pages = append(c.engine.pages, p)
	return p, nil
}

func (c *fakeContext) Close() error {
	atomic.AddInt64(&c.engine.closed, 1)
	return nil
}

type fakePage struct {
	engine *fakeEngine
	number int64

	mu        sync.Mutex
	timeout   time.Duration
	visits    []string
	headers   []http.Header
	firstLoad time.Time
}

func (p *fakePage) failing() bool {
	return p.engine.failPage != 0 && p.engine.failPage == p.number
}

func (p *fakePage) SetDefaultTimeout(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = d
}

func (p *fakePage) Goto(ctx context.Context, url string) error {
	p.mu.Lock()
	p.visits = append(p.visits, url)
	if url != browser.BlankURL && p.firstLoad.IsZero() {
		p.firstLoad = time.Now()
	}
	p.mu.Unlock()

	if url == browser.BlankURL {
		return ctx.Err()
	}
	if p.failing() && !p.engine.hangOnText {
		return errUnreachable
	}
	if p.engine.latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(p.engine.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakePage) WaitForText(ctx context.Context, text string) (string, error) {
	if !p.failing() {
		return text, ctx.Err()
	}
	p.mu.Lock()
	timeout := p.timeout
	p.mu.Unlock()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	<-waitCtx.Done()
	return "", waitCtx.Err()
}

func (p *fakePage) SetExtraHeaders(ctx context.Context, headers http.Header) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.headers = append(p.headers, headers.Clone())
	return nil
}

func (p *fakePage) NavigationTiming(ctx context.Context) (browser.NavigationTiming, error) {
	return p.engine.timing, nil
}

func (p *fakePage) Visits() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visits...)
}

func (p *fakePage) FirstLoad() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstLoad
}
