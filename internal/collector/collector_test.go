package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/JakeFAU/logbook-exporter/internal/content"
	"github.com/JakeFAU/logbook-exporter/internal/fetch"
	"github.com/JakeFAU/logbook-exporter/internal/pacing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const root = "https://site.test/r/lada/1/"

type response struct {
	page content.ListingPage
	err  error
}

type fakeSource struct {
	pages map[string]response
	calls []string
}

func (f *fakeSource) Listing(_ context.Context, pageURL string) (content.ListingPage, error) {
	f.calls = append(f.calls, pageURL)
	r, ok := f.pages[pageURL]
	if !ok {
		return content.ListingPage{}, &fetch.NavigationError{URL: pageURL, Attempts: 3, Err: errors.New("not found")}
	}
	return r.page, r.err
}

func posts(names ...string) []content.PostSummary {
	out := make([]content.PostSummary, 0, len(names))
	for _, n := range names {
		out = append(out, content.PostSummary{Title: n, Link: "https://site.test/l/" + n})
	}
	return out
}

func pageURL(t *testing.T, n int) string {
	t.Helper()
	u, err := PageURL(root, "page", n)
	require.NoError(t, err)
	return u
}

func TestCollectSkipsFailedPages(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: map[string]response{
		root:           {page: content.ListingPage{Posts: posts("a", "b"), PageCount: 3}},
		pageURL(t, 3): {page: content.ListingPage{Posts: posts("e")}},
	}}
	rec := &pacing.Recorder{}
	c := New(src, Config{PageDelay: 2 * time.Second}, rec, nil)

	res, err := c.Collect(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, posts("a", "b", "e"), res.Posts)
	assert.Equal(t, 3, res.PageCount)
	assert.Equal(t, 1, res.PagesSkipped)
	assert.Equal(t, []string{root, pageURL(t, 2), pageURL(t, 3)}, src.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, rec.Delays)
}

func TestCollectFirstPageNavigationFailurePropagates(t *testing.T) {
	t.Parallel()

	c := New(&fakeSource{}, Config{}, &pacing.Recorder{}, nil)
	_, err := c.CollectPosts(context.Background(), root)
	var navErr *fetch.NavigationError
	require.ErrorAs(t, err, &navErr)
}

func TestCollectFirstPageExtractionFailureIsEmpty(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: map[string]response{
		root: {err: &fetch.ExtractionError{URL: root, Err: errors.New("bad markup")}},
	}}
	got, err := New(src, Config{}, &pacing.Recorder{}, nil).CollectPosts(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Len(t, src.calls, 1)
}

func TestCollectSinglePage(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: map[string]response{
		root: {page: content.ListingPage{Posts: posts("a"), PageCount: 0}},
	}}
	rec := &pacing.Recorder{}
	got, err := New(src, Config{}, rec, nil).CollectPosts(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, posts("a"), got)
	assert.Empty(t, rec.Delays)
}

func TestCollectKeepsDuplicates(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: map[string]response{
		root:           {page: content.ListingPage{Posts: posts("a"), PageCount: 2}},
		pageURL(t, 2): {page: content.ListingPage{Posts: posts("a")}},
	}}
	got, err := New(src, Config{}, &pacing.Recorder{}, nil).CollectPosts(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, posts("a", "a"), got)
}

func TestCollectMaxPages(t *testing.T) {
	t.Parallel()

	src := &fakeSource{pages: map[string]response{
		root:           {page: content.ListingPage{Posts: posts("a"), PageCount: 9999}},
		pageURL(t, 2): {page: content.ListingPage{Posts: posts("b")}},
	}}
	res, err := New(src, Config{MaxPages: 2}, &pacing.Recorder{}, nil).Collect(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, res.PageCount)
	assert.Equal(t, posts("a", "b"), res.Posts)
}

func TestCollectStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{pages: map[string]response{
		root: {page: content.ListingPage{Posts: posts("a"), PageCount: 3}},
	}}
	res, err := New(src, Config{PageDelay: time.Hour}, pacing.NewTimer(), nil).Collect(ctx, root)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, posts("a"), res.Posts)
	assert.Len(t, src.calls, 1)
}

func TestPageURL(t *testing.T) {
	t.Parallel()

	u, err := PageURL("https://site.test/r/1/?sort=new", "page", 4)
	require.NoError(t, err)
	assert.Equal(t, "https://site.test/r/1/?page=4&sort=new", u)

	u, err = PageURL("https://site.test/r/1/?page=1", "p", 2)
	require.NoError(t, err)
	assert.Equal(t, "https://site.test/r/1/?p=2&page=1", u)
}
