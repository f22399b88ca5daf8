package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/logbook-exporter/internal/extract"
	"github.com/JakeFAU/logbook-exporter/internal/fetch"
	"github.com/JakeFAU/logbook-exporter/internal/pacing"
)

func newSite(t *testing.T, pages map[string]string) (*Site, string) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.RequestURI()]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client := fetch.NewClient(fetch.NewCollyBrowser(fetch.BrowserConfig{}), fetch.Config{MaxRetries: 1}, nil,
		fetch.WithPauser(&pacing.Recorder{}))
	return New(client, extract.New(extract.Selectors{})), server.URL
}

func TestSiteReviewAndPost(t *testing.T) {
	t.Parallel()

	site, base := newSite(t, map[string]string{
		"/r/1/": `<html><body><h1>Niva</h1><div itemprop="reviewBody"><p>Fine</p></div></body></html>`,
		"/l/9/": `<html><body><h1>Trip</h1><div itemprop="articleBody"><p>Went</p></div></body></html>`,
	})

	review, err := site.Review(context.Background(), base+"/r/1/")
	require.NoError(t, err)
	assert.Equal(t, "Niva", review.Title)
	assert.Equal(t, "<p>Fine</p>", review.ReviewBodyHTML)
	assert.Equal(t, base, review.BaseURL)

	post, err := site.Post(context.Background(), base+"/l/9/")
	require.NoError(t, err)
	assert.Equal(t, "Trip", post.Title)
	assert.Equal(t, "<p>Went</p>", post.ContentHTML)
}

func TestSiteListing(t *testing.T) {
	t.Parallel()

	site, base := newSite(t, map[string]string{
		"/r/1/?page=2": `<html><body>
<div class="c-post-preview"><div class="c-post-preview__title"><a href="/l/5/">Five</a></div></div>
<div class="c-pager"><a href="?page=3">3</a></div></body></html>`,
	})

	page, err := site.Listing(context.Background(), base+"/r/1/?page=2")
	require.NoError(t, err)
	assert.Equal(t, 3, page.PageCount)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, base+"/l/5/", page.Posts[0].Link)
}

func TestSiteErrors(t *testing.T) {
	t.Parallel()

	site, base := newSite(t, map[string]string{
		"/empty/": `<html><body><p>no heading</p></body></html>`,
	})

	_, err := site.Review(context.Background(), base+"/missing/")
	var navErr *fetch.NavigationError
	require.ErrorAs(t, err, &navErr)

	_, err = site.Post(context.Background(), base+"/empty/")
	var extErr *fetch.ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.ErrorIs(t, err, extract.ErrNoTitle)
}
