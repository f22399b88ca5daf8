package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// ErrWaitSelectorMissing is returned when a static page lacks the element the
// wait condition asks for.
var ErrWaitSelectorMissing = errors.New("wait selector not present in document")

// CollyBrowser fetches pages over plain HTTP with gocolly. JavaScript is not
// executed, so it only suits pages whose content is server rendered.
type CollyBrowser struct {
	cfg       BrowserConfig
	transport http.RoundTripper
}

// NewCollyBrowser creates a colly-backed Browser.
func NewCollyBrowser(cfg BrowserConfig) *CollyBrowser {
	return &CollyBrowser{cfg: cfg, transport: newHTTPTransport()}
}

// Launch builds a fresh collector for one fetch.
func (b *CollyBrowser) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("launch colly session: %w", err)
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(b.transport)
	c.IgnoreRobotsTxt = true
	if b.cfg.UserAgent != "" {
		c.UserAgent = b.cfg.UserAgent
	}
	return &collySession{collector: c, transport: b.transport, headers: b.cfg.Headers}, nil
}

type collySession struct {
	collector *colly.Collector
	transport http.RoundTripper
	headers   http.Header
}

func (s *collySession) Open(context.Context) (Page, error) {
	return &collyPage{collector: s.collector, transport: s.transport, headers: s.headers}, nil
}

func (s *collySession) Close() error {
	return nil
}

type collyPage struct {
	collector *colly.Collector
	transport http.RoundTripper
	headers   http.Header
	html      string
}

func (p *collyPage) GotoAndWait(ctx context.Context, url string, opts WaitOptions) error {
	collector := p.collector.Clone()
	if p.transport != nil {
		collector.WithTransport(&contextTransport{ctx: ctx, base: p.transport})
	}
	if opts.Timeout > 0 {
		collector.SetRequestTimeout(opts.Timeout)
	}

	var (
		body     []byte
		fetchErr error
	)
	collector.OnRequest(func(r *colly.Request) {
		for key, values := range p.headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		fetchErr = err
	})

	if err := runCollector(ctx, collector, url, &fetchErr); err != nil {
		return err
	}
	html := string(body)
	if err := checkWaitSelector(html, opts.Selector); err != nil {
		return err
	}
	p.html = html
	return nil
}

func (p *collyPage) SetContent(_ context.Context, html string, opts WaitOptions) error {
	if err := checkWaitSelector(html, opts.Selector); err != nil {
		return err
	}
	p.html = html
	return nil
}

func (p *collyPage) Content(context.Context) (string, error) {
	if p.html == "" {
		return "", errors.New("no document loaded")
	}
	return p.html, nil
}

func checkWaitSelector(html, selector string) error {
	if selector == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %q", ErrWaitSelectorMissing, selector)
	}
	return nil
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		// The transport aborts the in-flight request, so Visit returns promptly.
		<-done
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if ctx.Err() != nil {
			return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

// contextTransport binds every request of a visit to the caller's context.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithCancel(req.Context())
	stop := context.AfterFunc(t.ctx, cancel)
	release := func() {
		stop()
		cancel()
	}
	resp, err := t.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		release()
		return nil, err
	}
	resp.Body = &releasingBody{ReadCloser: resp.Body, release: release}
	return resp, nil
}

type releasingBody struct {
	io.ReadCloser
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
