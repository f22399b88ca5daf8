package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/logbook-exporter/internal/pacing"
)

func TestCollyBrowserFetch(t *testing.T) {
	t.Parallel()

	var gotUA, gotHeader atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.UserAgent())
		gotHeader.Store(r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><h1>Static</h1></body></html>`))
	}))
	defer server.Close()

	browser := NewCollyBrowser(BrowserConfig{
		UserAgent: "logbook-test/1.0",
		Headers:   http.Header{"Accept-Language": {"ru-RU"}},
	})
	client := NewClient(browser, Config{MaxRetries: 1}, nil)

	title, err := Fetch(context.Background(), client, "test", URLTarget(server.URL), titleExtractor)
	require.NoError(t, err)
	assert.Equal(t, "Static", title)
	assert.Equal(t, "logbook-test/1.0", gotUA.Load())
	assert.Equal(t, "ru-RU", gotHeader.Load())
}

func TestCollyBrowserRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`<html><body><h1>Recovered</h1></body></html>`))
	}))
	defer server.Close()

	rec := &pacing.Recorder{}
	client := NewClient(NewCollyBrowser(BrowserConfig{}), Config{MaxRetries: 3, RetryDelay: time.Second}, nil, WithPauser(rec))

	title, err := Fetch(context.Background(), client, "test", URLTarget(server.URL), titleExtractor)
	require.NoError(t, err)
	assert.Equal(t, "Recovered", title)
	assert.EqualValues(t, 3, calls.Load())
	assert.Len(t, rec.Delays, 2)
}

func TestCollyBrowserNavigationError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(NewCollyBrowser(BrowserConfig{}), Config{MaxRetries: 2}, nil, WithPauser(&pacing.Recorder{}))

	_, err := Fetch(context.Background(), client, "test", URLTarget(server.URL), titleExtractor)
	var navErr *NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, 2, navErr.Attempts)
}

func TestCollyWaitSelector(t *testing.T) {
	t.Parallel()

	page := &collyPage{}
	err := page.SetContent(context.Background(), "<div>x</div>", WaitOptions{Selector: "article"})
	require.ErrorIs(t, err, ErrWaitSelectorMissing)

	require.NoError(t, page.SetContent(context.Background(), "<article>x</article>", WaitOptions{Selector: "article"}))
	html, err := page.Content(context.Background())
	require.NoError(t, err)
	assert.Contains(t, html, "<article>")

	_, err = (&collyPage{}).Content(context.Background())
	assert.Error(t, err)
}

func TestNewBrowserMode(t *testing.T) {
	t.Parallel()

	assert.IsType(t, &CollyBrowser{}, NewBrowser(ModeStatic, BrowserConfig{}))
	assert.IsType(t, &ChromedpBrowser{}, NewBrowser(ModeHeadless, BrowserConfig{}))
}

func TestChromedpAllocatorOptions(t *testing.T) {
	t.Parallel()

	plain := NewChromedpBrowser(BrowserConfig{Headless: true}).allocatorOptions()
	full := NewChromedpBrowser(BrowserConfig{
		Headless:     true,
		NoSandbox:    true,
		UserAgent:    "ua",
		WindowWidth:  1280,
		WindowHeight: 800,
		ExecPath:     "/usr/bin/chromium",
	}).allocatorOptions()
	assert.Len(t, full, len(plain)+4)
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	headers := toNetworkHeaders(http.Header{
		"X-One":   {"a"},
		"X-Many":  {"a", "b"},
		"X-Empty": {},
	})
	assert.Equal(t, "a", headers["X-One"])
	assert.Equal(t, []string{"a", "b"}, headers["X-Many"])
	_, ok := headers["X-Empty"]
	assert.False(t, ok)
}

func TestForwardCancel(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()
	cancelParent()

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child context was not canceled")
	}
}

func TestCollyCancelAbortsInFlightRequest(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	aborted := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-r.Context().Done():
			close(aborted)
		case <-time.After(10 * time.Second):
		}
	}))
	defer server.Close()

	session, err := NewCollyBrowser(BrowserConfig{}).Launch(context.Background())
	require.NoError(t, err)
	page, err := session.Open(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	begin := time.Now()
	err = page.GotoAndWait(ctx, server.URL, WaitOptions{Timeout: 30 * time.Second})
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(begin), 5*time.Second)

	select {
	case <-aborted:
	case <-time.After(5 * time.Second):
		t.Fatal("request kept running after cancellation")
	}
}

func TestCollyPageReusableAfterCancel(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><h1>Again</h1></body></html>`))
	}))
	defer server.Close()

	session, err := NewCollyBrowser(BrowserConfig{}).Launch(context.Background())
	require.NoError(t, err)
	page, err := session.Open(context.Background())
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, page.GotoAndWait(canceled, server.URL, WaitOptions{}))

	require.NoError(t, page.GotoAndWait(context.Background(), server.URL, WaitOptions{Selector: "h1"}))
	html, err := page.Content(context.Background())
	require.NoError(t, err)
	assert.Contains(t, html, "Again")
}
