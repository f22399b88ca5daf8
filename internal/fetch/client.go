package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/logbook-exporter/internal/pacing"
)

// Default timings for Config.
const (
	DefaultMaxRetries        = 3
	DefaultRetryDelay        = 3 * time.Second
	DefaultNavigationTimeout = 90 * time.Second
	DefaultPageTimeout       = 120 * time.Second
	DefaultWaitSelector      = "body"
)

// Config controls retries and timeouts of the Client.
type Config struct {
	MaxRetries        int
	RetryDelay        time.Duration
	NavigationTimeout time.Duration
	PageTimeout       time.Duration
	WaitSelector      string
	Settle            time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = DefaultNavigationTimeout
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = DefaultPageTimeout
	}
	if c.WaitSelector == "" {
		c.WaitSelector = DefaultWaitSelector
	}
	return c
}

// Target is what a fetch loads: a URL, or raw HTML when HTML is set.
type Target struct {
	URL  string
	HTML string
}

// URLTarget is shorthand for a URL target.
func URLTarget(url string) Target {
	return Target{URL: url}
}

func (t Target) label() string {
	if t.HTML != "" && t.URL == "" {
		return "raw-content"
	}
	return t.URL
}

// Extractor turns a rendered document into a record.
type Extractor[T any] func(doc *goquery.Document) (T, error)

// Observer receives fetch outcomes; metrics.Recorder satisfies it.
type Observer interface {
	ObserveFetch(kind string, err error)
	ObserveRetry(kind string)
}

type nopObserver struct{}

func (nopObserver) ObserveFetch(string, error) {}
func (nopObserver) ObserveRetry(string)        {}

// Client performs reliable fetches. It holds no per-page state and can be
// reused for any number of sequential calls.
type Client struct {
	browser  Browser
	cfg      Config
	policy   RetryPolicy
	pauser   pacing.Pauser
	observer Observer
	logger   *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithPauser replaces the timer used between retries.
func WithPauser(p pacing.Pauser) Option {
	return func(c *Client) { c.pauser = p }
}

// WithObserver attaches a fetch observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient builds a Client around browser.
func NewClient(browser Browser, cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	c := &Client{
		browser:  browser,
		cfg:      cfg,
		policy:   NewFixedRetryPolicy(cfg.MaxRetries, cfg.RetryDelay),
		pauser:   pacing.NewTimer(),
		observer: nopObserver{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch loads target in a fresh session, retrying navigation per the
// client's policy, and runs extract against the rendered document. The
// session is always closed before Fetch returns. kind labels the request in
// logs and metrics.
func Fetch[T any](ctx context.Context, c *Client, kind string, target Target, extract Extractor[T]) (T, error) {
	result, err := c.fetch(ctx, kind, target, func(doc *goquery.Document) (any, error) {
		return extract(doc)
	})
	c.observer.ObserveFetch(kind, err)
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		var zero T
		return zero, &ExtractionError{URL: target.label(), Err: fmt.Errorf("unexpected result type %T", result)}
	}
	return typed, nil
}

func (c *Client) fetch(
	ctx context.Context,
	kind string,
	target Target,
	extract func(*goquery.Document) (any, error),
) (result any, err error) {
	label := target.label()
	logger := c.logger.With(zap.String("kind", kind), zap.String("url", label))

	session, err := c.browser.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("close browser session failed", zap.Error(cerr))
		}
	}()

	page, err := session.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	if err := c.navigate(ctx, logger, kind, page, target); err != nil {
		return nil, err
	}

	readyCtx, cancel := context.WithTimeout(ctx, c.cfg.PageTimeout)
	defer cancel()
	html, err := page.Content(readyCtx)
	if err != nil {
		return nil, &ExtractionError{URL: label, Err: fmt.Errorf("read rendered content: %w", err)}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ExtractionError{URL: label, Err: fmt.Errorf("parse rendered content: %w", err)}
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &ExtractionError{URL: label, Err: fmt.Errorf("extractor panic: %v", r)}
		}
	}()
	result, err = extract(doc)
	if err != nil {
		return nil, &ExtractionError{URL: label, Err: err}
	}
	return result, nil
}

func (c *Client) navigate(ctx context.Context, logger *zap.Logger, kind string, page Page, target Target) error {
	opts := WaitOptions{
		Selector: c.cfg.WaitSelector,
		Timeout:  c.cfg.NavigationTimeout,
		Settle:   c.cfg.Settle,
	}
	for attempt := 1; ; attempt++ {
		var err error
		if target.HTML != "" {
			err = page.SetContent(ctx, target.HTML, opts)
		} else {
			err = page.GotoAndWait(ctx, target.URL, opts)
		}
		if err == nil {
			if attempt > 1 {
				logger.Info("navigation succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}
		if ctx.Err() != nil || !c.policy.ShouldRetry(err, attempt) {
			logger.Error("navigation failed", zap.Int("attempts", attempt), zap.Error(err))
			return &NavigationError{URL: target.label(), Attempts: attempt, Err: err}
		}
		delay := c.policy.Backoff(attempt)
		logger.Warn("navigation failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		c.observer.ObserveRetry(kind)
		if perr := c.pauser.Pause(ctx, delay); perr != nil {
			return &NavigationError{URL: target.label(), Attempts: attempt, Err: errors.Join(err, perr)}
		}
	}
}
