// Package collector walks the paginated post listing of a car page.
package collector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/logbook-exporter/internal/content"
	"github.com/JakeFAU/logbook-exporter/internal/fetch"
	"github.com/JakeFAU/logbook-exporter/internal/pacing"
)

// Defaults applied by New.
const (
	DefaultPageDelay     = 2 * time.Second
	DefaultPageParameter = "page"
)

// ListingSource fetches and extracts one listing page.
type ListingSource interface {
	Listing(ctx context.Context, pageURL string) (content.ListingPage, error)
}

// Config tunes pagination.
type Config struct {
	// PageDelay is the wait before each page after the first.
	PageDelay time.Duration `mapstructure:"page_delay"`
	// PageParameter is the query parameter carrying the page number.
	PageParameter string `mapstructure:"page_param"`
	// MaxPages caps the advertised page count. Zero means no cap.
	MaxPages int `mapstructure:"max_pages"`
}

// Result is the outcome of one collection.
type Result struct {
	Posts        []content.PostSummary
	PageCount    int
	PagesSkipped int
}

// Collector gathers post summaries across listing pages.
type Collector struct {
	source ListingSource
	cfg    Config
	pauser pacing.Pauser
	logger *zap.Logger
}

// New returns a Collector. A nil pauser waits on a real timer.
func New(source ListingSource, cfg Config, pauser pacing.Pauser, logger *zap.Logger) *Collector {
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	if cfg.PageParameter == "" {
		cfg.PageParameter = DefaultPageParameter
	}
	if pauser == nil {
		pauser = pacing.NewTimer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{source: source, cfg: cfg, pauser: pauser, logger: logger}
}

// CollectPosts returns every post summary across all listing pages in page
// order. Only a navigation failure on the first page is returned as an error.
func (c *Collector) CollectPosts(ctx context.Context, rootURL string) ([]content.PostSummary, error) {
	res, err := c.Collect(ctx, rootURL)
	return res.Posts, err
}

// Collect is CollectPosts with page statistics.
func (c *Collector) Collect(ctx context.Context, rootURL string) (Result, error) {
	logger := c.logger.With(zap.String("root_url", rootURL))

	first, err := c.source.Listing(ctx, rootURL)
	if err != nil {
		var extErr *fetch.ExtractionError
		if !errors.As(err, &extErr) {
			return Result{}, fmt.Errorf("collect first listing page: %w", err)
		}
		logger.Warn("first listing page could not be read, assuming a single empty page", zap.Error(err))
		first = content.ListingPage{PageCount: 1}
	}

	res := Result{
		Posts:     append([]content.PostSummary(nil), first.Posts...),
		PageCount: c.pageCount(first.PageCount),
	}
	logger.Info("listing page collected",
		zap.Int("page", 1),
		zap.Int("page_count", res.PageCount),
		zap.Int("posts", len(first.Posts)),
	)

	for n := 2; n <= res.PageCount; n++ {
		if err := c.pauser.Pause(ctx, c.cfg.PageDelay); err != nil {
			return res, fmt.Errorf("collect listing page %d: %w", n, err)
		}
		pageURL, err := PageURL(rootURL, c.cfg.PageParameter, n)
		if err != nil {
			return res, err
		}
		page, err := c.source.Listing(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return res, fmt.Errorf("collect listing page %d: %w", n, ctx.Err())
			}
			res.PagesSkipped++
			logger.Error("listing page skipped", zap.Int("page", n), zap.String("url", pageURL), zap.Error(err))
			continue
		}
		res.Posts = append(res.Posts, page.Posts...)
		logger.Info("listing page collected", zap.Int("page", n), zap.Int("posts", len(page.Posts)))
	}

	logger.Info("post collection finished",
		zap.Int("posts", len(res.Posts)),
		zap.Int("pages_skipped", res.PagesSkipped),
	)
	return res, nil
}

func (c *Collector) pageCount(advertised int) int {
	if advertised < 1 {
		advertised = 1
	}
	if c.cfg.MaxPages > 0 && advertised > c.cfg.MaxPages {
		c.logger.Warn("page count capped", zap.Int("advertised", advertised), zap.Int("max_pages", c.cfg.MaxPages))
		return c.cfg.MaxPages
	}
	return advertised
}

// PageURL returns rootURL with param set to n, keeping the other query
// parameters.
func PageURL(rootURL, param string, n int) (string, error) {
	u, err := url.Parse(rootURL)
	if err != nil {
		return "", fmt.Errorf("parse root url: %w", err)
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
