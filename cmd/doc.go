// Package cmd implements the logbook-exporter command line.
//
// Architecture overview:
//   - Fetch: internal/fetch opens one browser session per page (chromedp by default, gocolly in static mode),
//     retries navigation with a fixed delay, and hands the rendered HTML to a goquery extractor.
//   - Extraction: internal/extract reads the review, listing cards and post pages with configurable selectors;
//     missing optional fields become empty values.
//   - Run: internal/pipeline writes Home.md, walks the listing via internal/collector, and writes one Markdown file
//     per post, recording each success in the .progress.json ledger so a rerun only fetches what is missing.
//   - Plumbing: Viper loads config from file and LOGBOOK_* env vars; zap logs carry run_id and URLs; a per-run
//     Prometheus registry can be dumped as a node-exporter textfile.
//
// Operational notes:
//   - Requests are strictly sequential with fixed delays between pages and posts.
//   - SIGINT/SIGTERM stop the run at the next wait; everything saved so far stays recorded.
//   - Two runs must not share an output directory at the same time; the ledger is not locked.
package cmd
