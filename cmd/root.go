package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/logbook-exporter/internal/app"
	"github.com/JakeFAU/logbook-exporter/internal/config"
	"github.com/JakeFAU/logbook-exporter/internal/fetch"
	"github.com/JakeFAU/logbook-exporter/internal/logging"
	"github.com/JakeFAU/logbook-exporter/internal/pipeline"
)

// Runner is the part of app.App the root command uses. It allows tests to
// inject a fake run.
type Runner interface {
	Run(ctx context.Context) (pipeline.Summary, error)
	Close()
}

// newRunner is the application factory. It's a variable so we can
// replace it with a fake factory in our tests.
var newRunner = func(cfg config.Config, logger *zap.Logger) (Runner, error) {
	return app.New(cfg, logger, app.Options{})
}

type rootOptions struct {
	configFile string
	sourceURL  string
	outputDir  string
	static     bool
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "logbook-exporter --url <car page URL> --output <directory>",
		Short: "Export a car review and its log posts to Markdown.",
		Long: `logbook-exporter saves the owner review of a car page as Home.md and every
post of the car's logbook as a dated Markdown file. Progress is recorded in
.progress.json inside the output directory, so an interrupted run can simply
be started again and only fetches what is missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			return runExport(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.sourceURL, "url", "u", "", "URL of the car page to export")
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "directory the Markdown files are written to")
	cmd.Flags().StringVar(&opts.configFile, "config", "", "optional YAML config file")
	cmd.Flags().BoolVar(&opts.static, "static", false, "fetch pages over plain HTTP instead of a headless browser")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("output")

	cmd.AddCommand(newStatusCmd())
	return cmd
}

func runExport(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.SourceURL = opts.sourceURL
	cfg.OutputDir = opts.outputDir
	if opts.static {
		cfg.Fetch.Mode = fetch.ModeStatic
	}
	if err := cfg.ValidateRun(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := newRunner(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize export: %w", err)
	}
	defer runner.Close()

	summary, err := runner.Run(ctx)
	printSummary(cmd, summary)
	if err != nil {
		logger.Error("export failed", zap.Error(err))
		return err
	}
	return nil
}

func printSummary(cmd *cobra.Command, s pipeline.Summary) {
	review := "failed"
	switch {
	case s.ReviewSkipped:
		review = "already saved"
	case s.ReviewWritten:
		review = "saved"
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "review: %s\n", review)
	_, _ = fmt.Fprintf(out, "posts: %d found, %d new, %d saved, %d failed\n",
		s.PostsFound, s.PostsRemaining, s.PostsSaved, s.PostsFailed)
	if s.PagesSkipped > 0 {
		_, _ = fmt.Fprintf(out, "listing pages skipped: %d\n", s.PagesSkipped)
	}
}

// Execute is the main entry point.
func Execute() {
	ctx := context.Background()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
