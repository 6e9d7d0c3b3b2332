package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/tidwall/gjson"
)

const navigationTimingScript = `JSON.stringify(performance.getEntriesByType("navigation")[0] || {})`

// ChromeEngine launches Chromium through the Chrome DevTools Protocol.
type ChromeEngine struct{}

// NewChromeEngine returns an Engine backed by chromedp.
func NewChromeEngine() *ChromeEngine {
	return &ChromeEngine{}
}

type chromeBrowser struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	closeOnce   sync.Once
	closeErr    error
}

type chromeContext struct {
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	used      bool
	tabs      []context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

type chromePage struct {
	ctx     context.Context
	mu      sync.Mutex
	timeout time.Duration
}

// Launch starts a browser process, or attaches to RemoteURL when set, and waits for
// it to accept DevTools commands.
func (ChromeEngine) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if remote := strings.TrimSpace(opts.RemoteURL); remote != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, remote)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	}

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	// The first Run allocates the browser; it must not carry a timeout or the
	// browser would be torn down when the timeout context is released.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &chromeBrowser{
		allocCancel: allocCancel,
		ctx:         browserCtx,
		cancel:      cancel,
	}, nil
}

func allocatorOptions(opts LaunchOptions) []chromedp.ExecAllocatorOption {
	options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	options = append(options, chromedp.Flag("headless", opts.Headless))
	if !opts.Headless {
		options = append(options,
			chromedp.Flag("hide-scrollbars", false),
			chromedp.Flag("mute-audio", false),
		)
	}
	if path := strings.TrimSpace(opts.ExecPath); path != "" {
		options = append(options, chromedp.ExecPath(path))
	}
	for _, flag := range ParseFlags(strings.Join(opts.ExtraFlags, " ")) {
		name, value, hasValue := strings.Cut(strings.TrimLeft(flag, "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			options = append(options, chromedp.Flag(name, value))
		} else {
			options = append(options, chromedp.Flag(name, true))
		}
	}
	return options
}

// ParseFlags splits a space-delimited string of Chromium switches into tokens.
// Quoting is not supported.
func ParseFlags(input string) []string {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	return strings.Fields(input)
}

// NewContext opens a tab in a fresh browser context so sessions never share
// cookies, cache or pooled connections.
func (b *chromeBrowser) NewContext(ctx context.Context) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(b.ctx, chromedp.WithNewBrowserContext())
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	return &chromeContext{ctx: tabCtx, cancel: cancel}, nil
}

func (b *chromeBrowser) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = chromedp.Cancel(b.ctx)
		b.cancel()
		b.allocCancel()
		if errors.Is(b.closeErr, context.Canceled) {
			b.closeErr = nil
		}
	})
	return b.closeErr
}

// NewPage returns the context's initial tab on the first call and opens additional
// tabs in the same browser context afterwards.
func (c *chromeContext) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.used {
		c.used = true
		return &chromePage{ctx: c.ctx, timeout: DefaultTimeout}, nil
	}
	tabCtx, cancel := chromedp.NewContext(c.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("open page: %w", err)
	}
	c.tabs = append(c.tabs, cancel)
	return &chromePage{ctx: tabCtx, timeout: DefaultTimeout}, nil
}

func (c *chromeContext) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		for _, cancel := range c.tabs {
			cancel()
		}
		c.tabs = nil
		c.mu.Unlock()
		c.closeErr = chromedp.Cancel(c.ctx)
		c.cancel()
		if errors.Is(c.closeErr, context.Canceled) {
			c.closeErr = nil
		}
	})
	return c.closeErr
}

func (p *chromePage) SetDefaultTimeout(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d <= 0 {
		d = DefaultTimeout
	}
	p.timeout = d
}

// run executes actions on the page's tab, bounded by the default timeout and by
// the caller's context.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	p.mu.Lock()
	timeout := p.timeout
	p.mu.Unlock()

	opCtx, cancel := withTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) Goto(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) WaitForText(ctx context.Context, text string) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.InnerHTML(TextXPath(text), &html, chromedp.BySearch)); err != nil {
		return "", fmt.Errorf("wait for text %q: %w", text, err)
	}
	return html, nil
}

func (p *chromePage) SetExtraHeaders(ctx context.Context, headers http.Header) error {
	if len(headers) == 0 {
		return nil
	}
	values := make(network.Headers, len(headers))
	for key := range headers {
		values[key] = headers.Get(key)
	}
	return p.run(ctx, network.Enable(), network.SetExtraHTTPHeaders(values))
}

func (p *chromePage) NavigationTiming(ctx context.Context) (NavigationTiming, error) {
	var raw string
	if err := p.run(ctx, chromedp.Evaluate(navigationTimingScript, &raw)); err != nil {
		return NavigationTiming{}, fmt.Errorf("read navigation timing: %w", err)
	}
	return ParseNavigationTiming(raw), nil
}

// ParseNavigationTiming extracts timing fields from a serialized
// PerformanceNavigationTiming entry. Missing fields are zero.
func ParseNavigationTiming(raw string) NavigationTiming {
	if !gjson.Valid(raw) {
		return NavigationTiming{}
	}
	fields := gjson.GetMany(raw, "responseStart", "domInteractive", "domContentLoadedEventEnd", "loadEventEnd", "transferSize")
	return NavigationTiming{
		TTFB:             fields[0].Float(),
		DOMInteractive:   fields[1].Float(),
		DOMContentLoaded: fields[2].Float(),
		LoadEvent:        fields[3].Float(),
		TransferSize:     fields[4].Int(),
	}
}

// TextXPath builds an XPath query matching elements with a direct text node
// containing text.
func TextXPath(text string) string {
	return fmt.Sprintf("//*[text()[contains(., %s)]]", xpathLiteral(text))
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if part != "" {
			quoted = append(quoted, `"`+part+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
