// Package metrics exposes Prometheus collectors for an export run. Each run
// owns a registry; a batch process has nothing to scrape, so the registry is
// written once as a node-exporter textfile when the run ends.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcome label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Recorder holds the collectors of one run. It satisfies fetch.Observer.
type Recorder struct {
	registry *prometheus.Registry

	fetchesTotal     *prometheus.CounterVec
	retriesTotal     *prometheus.CounterVec
	documentsTotal   *prometheus.CounterVec
	postsFailedTotal prometheus.Counter
	pagesSkipped     prometheus.Counter
	runDuration      prometheus.Gauge
	lastRunTimestamp prometheus.Gauge
}

// New registers the run collectors, labeled with the sanitized host of
// sourceURL, on a fresh registry.
func New(sourceURL string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"site": SanitizeSite(sourceURL)}

	return &Recorder{
		registry: reg,
		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "logbook_fetches_total",
				Help:        "Total number of page fetches, labeled by page kind and status.",
				ConstLabels: labels,
			},
			[]string{"kind", "status"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "logbook_fetch_retries_total",
				Help:        "Total number of navigation retries, labeled by page kind.",
				ConstLabels: labels,
			},
			[]string{"kind"},
		),
		documentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "logbook_documents_written_total",
				Help:        "Total number of Markdown documents written, labeled by document kind.",
				ConstLabels: labels,
			},
			[]string{"kind"},
		),
		postsFailedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "logbook_posts_failed_total",
			Help:        "Total number of posts that could not be exported.",
			ConstLabels: labels,
		}),
		pagesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name:        "logbook_listing_pages_skipped_total",
			Help:        "Total number of listing pages skipped after failed fetches.",
			ConstLabels: labels,
		}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "logbook_run_duration_seconds",
			Help:        "Wall time of the last export run.",
			ConstLabels: labels,
		}),
		lastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "logbook_last_run_timestamp_seconds",
			Help:        "Unix time the last export run finished.",
			ConstLabels: labels,
		}),
	}
}

// Registry returns the registry holding the run collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveFetch counts a finished fetch.
func (r *Recorder) ObserveFetch(kind string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	r.fetchesTotal.WithLabelValues(kind, status).Inc()
}

// ObserveRetry counts a navigation retry.
func (r *Recorder) ObserveRetry(kind string) {
	r.retriesTotal.WithLabelValues(kind).Inc()
}

// ObserveDocument counts a written document.
func (r *Recorder) ObserveDocument(kind string) {
	r.documentsTotal.WithLabelValues(kind).Inc()
}

// ObservePostFailed counts a post that was skipped after an error.
func (r *Recorder) ObservePostFailed() {
	r.postsFailedTotal.Inc()
}

// ObservePagesSkipped adds skipped listing pages.
func (r *Recorder) ObservePagesSkipped(n int) {
	if n > 0 {
		r.pagesSkipped.Add(float64(n))
	}
}

// ObserveRun records the duration and completion time of a run.
func (r *Recorder) ObserveRun(started, finished time.Time) {
	r.runDuration.Set(finished.Sub(started).Seconds())
	r.lastRunTimestamp.Set(float64(finished.Unix()))
}

// WriteTextfile writes the registry to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
