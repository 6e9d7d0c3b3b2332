// Package browser defines the browser automation capability pagefire drives and a
// chromedp-backed implementation of it.
//
// The interfaces mirror the lifecycle of a load-test session:
//
//	b, _ := engine.Launch(ctx, browser.LaunchOptions{})
//	bc, _ := b.NewContext(ctx)   // isolated cookies, cache and connection pool
//	page, _ := bc.NewPage(ctx)
//	page.SetDefaultTimeout(2 * time.Minute)
//	_ = page.Goto(ctx, "https://example.com")
//	_, _ = page.WaitForText(ctx, "Welcome")
//	_ = bc.Close()
//	_ = b.Close()
//
// Every blocking call on a Page is bounded by the page's default timeout in addition
// to the caller's context.
package browser

import (
	"context"
	"net/http"
	"time"
)

// BlankURL is the neutral page sessions are reset to between trials.
const BlankURL = "about:blank"

// DefaultTimeout bounds a single page operation when none is configured.
const DefaultTimeout = 120 * time.Second

// LaunchOptions control how the browser process is started.
type LaunchOptions struct {
	Headless   bool
	ExecPath   string   // chrome/chromium binary; empty uses the allocator's lookup
	RemoteURL  string   // DevTools websocket/http endpoint of an already running browser
	ExtraFlags []string // additional --flag or --flag=value switches
}

// Engine starts browsers.
type Engine interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is a running browser process shared by all sessions.
type Browser interface {
	NewContext(ctx context.Context) (Context, error)
	Close() error
}

// Context is an isolated browsing context. Pages in different contexts share no
// cookies, cache or network connections.
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab owned by one session.
type Page interface {
	SetDefaultTimeout(d time.Duration)
	Goto(ctx context.Context, url string) error
	// WaitForText blocks until an element whose text contains text is present and
	// returns that element's inner HTML.
	WaitForText(ctx context.Context, text string) (string, error)
	SetExtraHeaders(ctx context.Context, headers http.Header) error
	NavigationTiming(ctx context.Context) (NavigationTiming, error)
}

// NavigationTiming is the subset of the W3C PerformanceNavigationTiming entry
// reported per trial, in milliseconds relative to navigation start.
type NavigationTiming struct {
	TTFB             float64 `json:"ttfb_ms" yaml:"ttfb_ms"`
	DOMInteractive   float64 `json:"dom_interactive_ms" yaml:"dom_interactive_ms"`
	DOMContentLoaded float64 `json:"dom_content_loaded_ms" yaml:"dom_content_loaded_ms"`
	LoadEvent        float64 `json:"load_event_ms" yaml:"load_event_ms"`
	TransferSize     int64   `json:"transfer_size_bytes" yaml:"transfer_size_bytes"`
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
