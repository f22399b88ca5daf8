// Package source binds the fetch client to the page extractors, giving the
// collector and pipeline one typed call per page kind.
package source

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/logbook-exporter/internal/content"
	"github.com/JakeFAU/logbook-exporter/internal/extract"
	"github.com/JakeFAU/logbook-exporter/internal/fetch"
)

// Fetch kinds used for logging and metrics labels.
const (
	KindReview  = "review"
	KindListing = "listing"
	KindPost    = "post"
)

// Site fetches and extracts pages of the supported layout.
type Site struct {
	client    *fetch.Client
	extractor *extract.Extractor
}

// New returns a Site reading pages through client.
func New(client *fetch.Client, extractor *extract.Extractor) *Site {
	return &Site{client: client, extractor: extractor}
}

// Review fetches the car's root page and extracts the owner review.
func (s *Site) Review(ctx context.Context, pageURL string) (content.ReviewRecord, error) {
	return fetch.Fetch(ctx, s.client, KindReview, fetch.URLTarget(pageURL),
		func(doc *goquery.Document) (content.ReviewRecord, error) {
			return s.extractor.Review(doc, pageURL)
		})
}

// Listing fetches one listing page and extracts its post cards.
func (s *Site) Listing(ctx context.Context, pageURL string) (content.ListingPage, error) {
	return fetch.Fetch(ctx, s.client, KindListing, fetch.URLTarget(pageURL),
		func(doc *goquery.Document) (content.ListingPage, error) {
			return s.extractor.Listing(doc, pageURL)
		})
}

// Post fetches a post detail page.
func (s *Site) Post(ctx context.Context, link string) (content.PostRecord, error) {
	return fetch.Fetch(ctx, s.client, KindPost, fetch.URLTarget(link),
		func(doc *goquery.Document) (content.PostRecord, error) {
			return s.extractor.Post(doc, link)
		})
}
