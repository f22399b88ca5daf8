// Package app builds the services of one export run from configuration and
// holds them for the duration of the run.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/logbook-exporter/internal/clock/system"
	"github.com/JakeFAU/logbook-exporter/internal/collector"
	"github.com/JakeFAU/logbook-exporter/internal/config"
	"github.com/JakeFAU/logbook-exporter/internal/extract"
	"github.com/JakeFAU/logbook-exporter/internal/fetch"
	"github.com/JakeFAU/logbook-exporter/internal/id/uuid"
	"github.com/JakeFAU/logbook-exporter/internal/metrics"
	"github.com/JakeFAU/logbook-exporter/internal/pacing"
	"github.com/JakeFAU/logbook-exporter/internal/pipeline"
	"github.com/JakeFAU/logbook-exporter/internal/source"
)

// Clock supplies the run start and end times.
type Clock interface {
	Now() time.Time
}

// App holds the wired services of a run.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	recorder *metrics.Recorder
	pipeline *pipeline.Pipeline
	clock    Clock
}

// Options overrides the collaborators New would otherwise build.
type Options struct {
	Fs      afero.Fs
	Browser fetch.Browser
	Pauser  pacing.Pauser
	Clock   Clock
}

// New wires the browser, fetch client, extractors, collector, metrics and
// pipeline described by cfg. The returned App does not touch the network
// until Run.
func New(cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if err := cfg.ValidateRun(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	browser := opts.Browser
	if browser == nil {
		browser = fetch.NewBrowser(cfg.Fetch.Mode, cfg.BrowserConfig())
	}
	pauser := opts.Pauser
	if pauser == nil {
		pauser = pacing.NewTimer()
	}
	clock := opts.Clock
	if clock == nil {
		clock = system.New()
	}

	recorder := metrics.New(cfg.SourceURL)
	client := fetch.NewClient(browser, cfg.FetchClientConfig(), logger.Named("fetch"),
		fetch.WithPauser(pauser),
		fetch.WithObserver(recorder),
	)
	site := source.New(client, extract.New(cfg.Selectors))
	posts := collector.New(site, cfg.CollectorConfig(), pauser, logger.Named("collector"))
	run := pipeline.New(
		pipeline.Config{OutputDir: cfg.OutputDir, PostDelay: cfg.Pacing.PostDelay},
		opts.Fs,
		site,
		posts,
		pipeline.WithPauser(pauser),
		pipeline.WithIDGenerator(uuid.New()),
		pipeline.WithRecorder(recorder),
		pipeline.WithLogger(logger.Named("pipeline")),
	)

	logger.Info("export configured",
		zap.String("mode", string(cfg.Fetch.Mode)),
		zap.Int("max_retries", cfg.Fetch.MaxRetries),
		zap.Duration("retry_delay", cfg.Fetch.RetryDelay),
		zap.Duration("post_delay", cfg.Pacing.PostDelay),
	)
	return &App{cfg: cfg, logger: logger, recorder: recorder, pipeline: run, clock: clock}, nil
}

// Run exports the configured source and writes the metrics textfile when one
// is configured.
func (a *App) Run(ctx context.Context) (pipeline.Summary, error) {
	started := a.clock.Now()
	summary, err := a.pipeline.Run(ctx, a.cfg.SourceURL)
	a.recorder.ObserveRun(started, a.clock.Now())

	if path := a.cfg.Metrics.Textfile; path != "" {
		if werr := a.recorder.WriteTextfile(path); werr != nil {
			a.logger.Warn("metrics textfile not written", zap.String("path", path), zap.Error(werr))
		}
	}
	if err != nil {
		return summary, fmt.Errorf("export %s: %w", a.cfg.SourceURL, err)
	}
	return summary, nil
}

// Recorder exposes the run metrics.
func (a *App) Recorder() *metrics.Recorder {
	return a.recorder
}

// Close flushes the logger.
func (a *App) Close() {
	// Sync commonly fails on stdout/stderr; there is nothing to do about it.
	_ = a.logger.Sync()
}
