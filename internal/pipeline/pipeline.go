// Package pipeline runs one export of a car page: the owner review, then every
// log post not yet recorded in the progress ledger. Failures of single items
// are logged and skipped; only an unusable output directory aborts a run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/logbook-exporter/internal/collector"
	"github.com/JakeFAU/logbook-exporter/internal/content"
	"github.com/JakeFAU/logbook-exporter/internal/ledger"
	"github.com/JakeFAU/logbook-exporter/internal/markdown"
	"github.com/JakeFAU/logbook-exporter/internal/naming"
	"github.com/JakeFAU/logbook-exporter/internal/pacing"
	"github.com/JakeFAU/logbook-exporter/internal/storage/local"
)

// DefaultPostDelay is the wait before each post fetch.
const DefaultPostDelay = 2 * time.Second

// Document kinds reported to the Recorder.
const (
	DocumentReview = "review"
	DocumentPost   = "post"
)

// State names the phase a run is in.
type State string

// Run phases, in order.
const (
	StateInit          State = "init"
	StateReviewPending State = "review_pending"
	StateReviewDone    State = "review_done"
	StateCollecting    State = "collecting"
	StatePerPostLoop   State = "per_post_loop"
	StateDone          State = "done"
)

// Site fetches the review and post pages.
type Site interface {
	Review(ctx context.Context, pageURL string) (content.ReviewRecord, error)
	Post(ctx context.Context, link string) (content.PostRecord, error)
}

// PostCollector gathers the post summaries of all listing pages.
type PostCollector interface {
	Collect(ctx context.Context, rootURL string) (collector.Result, error)
}

// IDGenerator creates run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Recorder receives run counters.
type Recorder interface {
	ObserveDocument(kind string)
	ObservePostFailed()
	ObservePagesSkipped(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveDocument(string)  {}
func (nopRecorder) ObservePostFailed()      {}
func (nopRecorder) ObservePagesSkipped(int) {}

// Config holds per-run settings.
type Config struct {
	OutputDir string
	PostDelay time.Duration
}

// Summary describes what a run did.
type Summary struct {
	RunID          string
	ReviewWritten  bool
	ReviewSkipped  bool
	PostsFound     int
	PostsRemaining int
	PostsSaved     int
	PostsFailed    int
	PagesSkipped   int
}

// Pipeline drives export runs.
type Pipeline struct {
	cfg       Config
	fs        afero.Fs
	site      Site
	collector PostCollector
	pauser    pacing.Pauser
	ids       IDGenerator
	recorder  Recorder
	logger    *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithPauser replaces the timer used between posts.
func WithPauser(p pacing.Pauser) Option {
	return func(pl *Pipeline) {
		if p != nil {
			pl.pauser = p
		}
	}
}

// WithIDGenerator sets the run ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(pl *Pipeline) {
		pl.ids = g
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(pl *Pipeline) {
		if r != nil {
			pl.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(pl *Pipeline) {
		if l != nil {
			pl.logger = l
		}
	}
}

// New wires a Pipeline. A nil fs uses the OS filesystem.
func New(cfg Config, fs afero.Fs, site Site, posts PostCollector, opts ...Option) *Pipeline {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if cfg.PostDelay < 0 {
		cfg.PostDelay = 0
	}
	p := &Pipeline{
		cfg:       cfg,
		fs:        fs,
		site:      site,
		collector: posts,
		pauser:    pacing.NewTimer(),
		recorder:  nopRecorder{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run exports sourceURL into the configured output directory. The returned
// error is non-nil only when the output directory is unusable or ctx ends.
func (p *Pipeline) Run(ctx context.Context, sourceURL string) (Summary, error) {
	var summary Summary
	if p.ids != nil {
		id, err := p.ids.NewID()
		if err != nil {
			p.logger.Warn("could not generate run id", zap.Error(err))
		}
		summary.RunID = id
	}
	logger := p.logger.With(
		zap.String("run_id", summary.RunID),
		zap.String("source_url", sourceURL),
		zap.String("output_dir", p.cfg.OutputDir),
	)
	enter := func(s State) {
		logger.Debug("run state", zap.String("state", string(s)))
	}

	enter(StateInit)
	store, err := local.New(p.fs, local.Config{BaseDir: p.cfg.OutputDir})
	if err != nil {
		logger.Error("output directory is unusable", zap.Error(err))
		return summary, fmt.Errorf("prepare output directory: %w", err)
	}
	logger.Debug("output directory ready", zap.String("dir", store.Dir()))
	progress := ledger.Load(store, logger)

	if progress.IsReviewComplete() {
		summary.ReviewSkipped = true
		logger.Info("review already exported, skipping")
	} else {
		enter(StateReviewPending)
		summary.ReviewWritten = p.exportReview(ctx, logger, store, progress, sourceURL)
	}
	enter(StateReviewDone)

	enter(StateCollecting)
	logger.Info("collecting posts")
	res, err := p.collector.Collect(ctx, sourceURL)
	summary.PagesSkipped = res.PagesSkipped
	p.recorder.ObservePagesSkipped(res.PagesSkipped)
	if err != nil {
		if ctx.Err() != nil {
			return summary, fmt.Errorf("collect posts: %w", ctx.Err())
		}
		logger.Error("post collection failed, no posts to export", zap.Error(err))
	}
	summary.PostsFound = len(res.Posts)

	remaining := progress.FilterRemaining(res.Posts)
	summary.PostsRemaining = len(remaining)
	logger.Info("posts collected",
		zap.Int("found", summary.PostsFound),
		zap.Int("already_exported", summary.PostsFound-summary.PostsRemaining),
		zap.Int("remaining", summary.PostsRemaining),
	)

	enter(StatePerPostLoop)
	attempted := make(map[string]struct{}, len(remaining))
	for i, post := range remaining {
		if _, seen := attempted[post.Link]; seen {
			logger.Debug("duplicate post in listing, already attempted", zap.String("link", post.Link))
			continue
		}
		attempted[post.Link] = struct{}{}

		if err := p.pauser.Pause(ctx, p.cfg.PostDelay); err != nil {
			return summary, fmt.Errorf("export posts: %w", err)
		}
		postLogger := logger.With(
			zap.Int("index", i+1),
			zap.Int("total", len(remaining)),
			zap.String("title", post.Title),
			zap.String("link", post.Link),
		)
		if p.exportPost(ctx, postLogger, store, progress, post) {
			summary.PostsSaved++
		} else {
			summary.PostsFailed++
			p.recorder.ObservePostFailed()
		}
	}

	enter(StateDone)
	logger.Info("run finished",
		zap.Bool("review_written", summary.ReviewWritten),
		zap.Int("posts_saved", summary.PostsSaved),
		zap.Int("posts_failed", summary.PostsFailed),
		zap.Int("pages_skipped", summary.PagesSkipped),
		zap.Int("total_exported", progress.ProcessedCount()),
	)
	return summary, nil
}

func (p *Pipeline) exportReview(
	ctx context.Context,
	logger *zap.Logger,
	store *local.Store,
	progress *ledger.Ledger,
	sourceURL string,
) bool {
	logger.Info("exporting review")
	review, err := p.site.Review(ctx, sourceURL)
	if err != nil {
		logger.Error("review export failed, will retry on the next run", zap.Error(err))
		return false
	}
	path, err := store.Put(naming.ReviewFileName, []byte(markdown.RenderReview(review)))
	if err != nil {
		logger.Error("could not write review", zap.Error(err))
		return false
	}
	p.recorder.ObserveDocument(DocumentReview)
	if err := progress.MarkReviewComplete(); err != nil {
		logger.Error("review written but not recorded", zap.String("path", path), zap.Error(err))
		return true
	}
	logger.Info("review saved", zap.String("path", path), zap.String("title", review.Title))
	return true
}

func (p *Pipeline) exportPost(
	ctx context.Context,
	logger *zap.Logger,
	store *local.Store,
	progress *ledger.Ledger,
	summary content.PostSummary,
) bool {
	logger.Info("exporting post")
	post, err := p.site.Post(ctx, summary.Link)
	if err != nil {
		logger.Error("post export failed", zap.Error(err))
		return false
	}

	fileName := postFileName(progress, summary, post)
	path, err := store.Put(fileName, []byte(markdown.RenderPost(post)))
	if err != nil {
		logger.Error("could not write post", zap.String("file", fileName), zap.Error(err))
		return false
	}
	p.recorder.ObserveDocument(DocumentPost)
	if err := progress.MarkPostProcessed(summary, fileName); err != nil {
		logger.Error("post written but not recorded", zap.String("path", path), zap.Error(err))
		return false
	}
	logger.Info("post saved", zap.String("path", path))
	return true
}

// postFileName prefers the detail page's date and title and falls back to the
// listing card's. A name already owned by another link gets a numeric suffix.
func postFileName(progress *ledger.Ledger, summary content.PostSummary, post content.PostRecord) string {
	date := post.PublicationDate
	if naming.FormatDate(date) == naming.UnknownDate {
		date = summary.Date
	}
	title := post.Title
	if title == "" {
		title = summary.Title
	}
	base := naming.PostFileName(date, title)
	name := base
	for n := 2; progress.FileNameTaken(name, summary.Link); n++ {
		name = naming.WithSuffix(base, n)
	}
	return name
}
