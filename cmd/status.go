package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/logbook-exporter/internal/ledger"
	"github.com/JakeFAU/logbook-exporter/internal/naming"
	"github.com/JakeFAU/logbook-exporter/internal/storage/local"
)

// statusFs is the filesystem the status command reads. Tests swap it.
var statusFs = afero.NewOsFs()

// newStatusCmd creates the 'status' subcommand, which prints the progress
// ledger of an output directory without contacting the site.
func newStatusCmd() *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what an output directory already contains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			exists, err := afero.DirExists(statusFs, outputDir)
			if err != nil {
				return fmt.Errorf("check output directory: %w", err)
			}
			if !exists {
				return fmt.Errorf("output directory %s does not exist", outputDir)
			}
			store, err := local.New(statusFs, local.Config{BaseDir: outputDir})
			if err != nil {
				return fmt.Errorf("open output directory: %w", err)
			}
			progress := ledger.Load(store, nil)

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "output: %s\n", store.Dir())
			_, _ = fmt.Fprintf(out, "review saved: %t%s\n", progress.IsReviewComplete(),
				missingMark(store, progress.IsReviewComplete(), naming.ReviewFileName))
			_, _ = fmt.Fprintf(out, "posts saved: %d\n", progress.ProcessedCount())
			for _, e := range progress.Entries() {
				_, _ = fmt.Fprintf(out, "  %s\t%s%s\n", e.FileName, e.Link, missingMark(store, true, e.FileName))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory of a previous export")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// missingMark flags ledger entries whose file was removed from the output
// directory; the next export does not rewrite them.
func missingMark(store *local.Store, recorded bool, name string) string {
	if recorded && !store.Exists(name) {
		return "\t(file missing)"
	}
	return ""
}
