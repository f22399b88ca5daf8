// Package fetch implements the reliable fetch used for every page request:
// one rendering session per call, bounded navigation retries with a fixed
// delay, and a caller-supplied extraction step run against the rendered DOM.
package fetch

import (
	"context"
	"net/http"
	"time"
)

// Browser launches rendering sessions.
type Browser interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is one browsing environment. It is owned by a single fetch.
type Session interface {
	Open(ctx context.Context) (Page, error)
	Close() error
}

// Page is a tab inside a Session.
type Page interface {
	// GotoAndWait navigates to url and blocks until the wait condition holds
	// or opts.Timeout elapses.
	GotoAndWait(ctx context.Context, url string, opts WaitOptions) error
	// SetContent loads raw HTML instead of navigating.
	SetContent(ctx context.Context, html string, opts WaitOptions) error
	// Content returns the rendered document HTML.
	Content(ctx context.Context) (string, error)
}

// WaitOptions describes when a page counts as loaded.
type WaitOptions struct {
	Selector string
	Timeout  time.Duration
	Settle   time.Duration
}

// Mode selects the Browser implementation.
type Mode string

// Supported browser modes.
const (
	ModeHeadless Mode = "headless"
	ModeStatic   Mode = "static"
)

// BrowserConfig holds launch settings shared by the Browser implementations.
type BrowserConfig struct {
	UserAgent    string
	Headers      http.Header
	Headless     bool
	NoSandbox    bool
	WindowWidth  int
	WindowHeight int
	// ExecPath overrides the Chrome binary; empty uses chromedp's lookup.
	ExecPath string
}

// NewBrowser returns the Browser for mode.
func NewBrowser(mode Mode, cfg BrowserConfig) Browser {
	if mode == ModeStatic {
		return NewCollyBrowser(cfg)
	}
	return NewChromedpBrowser(cfg)
}
