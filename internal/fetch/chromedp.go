package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromedpBrowser launches headless Chrome through chromedp. Every Launch
// starts a dedicated browser process that is torn down by Session.Close.
type ChromedpBrowser struct {
	cfg BrowserConfig
}

// NewChromedpBrowser creates a chromedp-backed Browser.
func NewChromedpBrowser(cfg BrowserConfig) *ChromedpBrowser {
	return &ChromedpBrowser{cfg: cfg}
}

func (b *ChromedpBrowser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", b.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if b.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if b.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.cfg.UserAgent))
	}
	if b.cfg.WindowWidth > 0 && b.cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(b.cfg.WindowWidth, b.cfg.WindowHeight))
	}
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}
	return opts
}

// Launch starts a browser process and waits until it accepts commands.
func (b *ChromedpBrowser) Launch(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), b.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	stop := forwardCancel(ctx, browserCancel)
	defer stop()
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	return &chromedpSession{
		headers:       b.cfg.Headers,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

type chromedpSession struct {
	headers       http.Header
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	tabs          []context.CancelFunc
}

// Open creates the tab. The first Run on a chromedp context binds the tab's
// event loop to that context, so it runs on the long-lived tabCtx and later
// calls derive their timeouts from it.
func (s *chromedpSession) Open(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	s.tabs = append(s.tabs, cancel)

	stop := forwardCancel(ctx, cancel)
	defer stop()
	if err := chromedp.Run(tabCtx); err != nil {
		return nil, fmt.Errorf("chromedp open tab: %w", err)
	}
	return &chromedpPage{tabCtx: tabCtx, headers: s.headers}, nil
}

func (s *chromedpSession) Close() error {
	for _, cancel := range s.tabs {
		cancel()
	}
	err := chromedp.Cancel(s.browserCtx)
	s.browserCancel()
	s.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

type chromedpPage struct {
	tabCtx  context.Context
	headers http.Header
}

// scoped derives a chromedp context from the tab that also honors the
// caller's cancellation and the given timeout.
func (p *chromedpPage) scoped(ctx context.Context, timeout time.Duration) (context.Context, func()) {
	runCtx, cancel := p.tabCtx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	}
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		runCtx, cancelDL = context.WithDeadline(runCtx, dl)
		prev := cancel
		cancel = func() { cancelDL(); prev() }
	}
	stop := forwardCancel(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromedpPage) GotoAndWait(ctx context.Context, url string, opts WaitOptions) error {
	runCtx, done := p.scoped(ctx, opts.Timeout)
	defer done()

	tasks := chromedp.Tasks{
		p.networkSetupAction(),
		chromedp.Navigate(url),
	}
	tasks = append(tasks, waitActions(opts)...)
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return fmt.Errorf("chromedp navigate: %w", err)
	}
	return nil
}

func (p *chromedpPage) SetContent(ctx context.Context, html string, opts WaitOptions) error {
	runCtx, done := p.scoped(ctx, opts.Timeout)
	defer done()

	tasks := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := cdppage.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("get frame tree: %w", err)
			}
			return cdppage.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
	}
	tasks = append(tasks, waitActions(opts)...)
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return fmt.Errorf("chromedp set content: %w", err)
	}
	return nil
}

func (p *chromedpPage) Content(ctx context.Context) (string, error) {
	runCtx, done := p.scoped(ctx, 0)
	defer done()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("chromedp outer html: %w", err)
	}
	return html, nil
}

func (p *chromedpPage) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if len(p.headers) == 0 {
			return nil
		}
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := network.SetExtraHTTPHeaders(toNetworkHeaders(p.headers)).Do(ctx); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
		return nil
	})
}

func waitActions(opts WaitOptions) []chromedp.Action {
	var actions []chromedp.Action
	if opts.Selector != "" {
		actions = append(actions, chromedp.WaitReady(opts.Selector, chromedp.ByQuery))
	}
	if opts.Settle > 0 {
		actions = append(actions, chromedp.Sleep(opts.Settle))
	}
	return actions
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		switch len(values) {
		case 0:
		case 1:
			headers[key] = values[0]
		default:
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
