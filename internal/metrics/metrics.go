// Package metrics exposes Prometheus collectors for the crawl and PDF passes.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Phase and status label values.
const (
	PhaseRender  = "render"
	PhaseExtract = "extract"

	StatusOK     = "ok"
	StatusFailed = "failed"
)

var (
	crawlerPagesTotal          *prometheus.CounterVec
	crawlerLinksDiscovered     prometheus.Counter
	crawlerFrontierEnqueued    prometheus.Counter
	crawlerBatchesTotal        prometheus.Counter
	crawlerBatchDurationSecond prometheus.Histogram
	pdfCompressedTotal         *prometheus.CounterVec
	pdfMergesTotal             *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webtopdf_pages_total",
				Help: "Pages processed, labeled by phase (render/extract) and status.",
			},
			[]string{"phase", "status"},
		)

		crawlerLinksDiscovered = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "webtopdf_links_discovered_total",
				Help: "In-scope links returned by the extract phase.",
			},
		)

		crawlerFrontierEnqueued = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "webtopdf_frontier_enqueued_total",
				Help: "URLs appended to the crawl frontier.",
			},
		)

		crawlerBatchesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "webtopdf_batches_total",
				Help: "Batches admitted from the frontier.",
			},
		)

		crawlerBatchDurationSecond = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webtopdf_batch_duration_seconds",
				Help:    "Wall time of one render+extract batch.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		)

		pdfCompressedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webtopdf_pdf_compressed_total",
				Help: "PDF files handled by the compression pass, labeled by status.",
			},
			[]string{"status"},
		)

		pdfMergesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webtopdf_pdf_merges_total",
				Help: "Merge passes, labeled by status.",
			},
			[]string{"status"},
		)
	})
}

func statusLabel(ok bool) string {
	if ok {
		return StatusOK
	}
	return StatusFailed
}

// ObservePage counts one render or extract outcome.
func ObservePage(phase string, ok bool) {
	Init()
	crawlerPagesTotal.WithLabelValues(phase, statusLabel(ok)).Inc()
}

// ObserveLinks adds the number of links one page contributed.
func ObserveLinks(n int) {
	Init()
	if n > 0 {
		crawlerLinksDiscovered.Add(float64(n))
	}
}

// ObserveEnqueued adds the number of URLs pushed onto the frontier.
func ObserveEnqueued(n int) {
	Init()
	if n > 0 {
		crawlerFrontierEnqueued.Add(float64(n))
	}
}

// ObserveBatch records one completed batch.
func ObserveBatch(duration time.Duration) {
	Init()
	crawlerBatchesTotal.Inc()
	crawlerBatchDurationSecond.Observe(duration.Seconds())
}

// ObserveCompression counts one file of the compression pass.
func ObserveCompression(ok bool) {
	Init()
	pdfCompressedTotal.WithLabelValues(statusLabel(ok)).Inc()
}

// ObserveMerge counts one merge pass.
func ObserveMerge(ok bool) {
	Init()
	pdfMergesTotal.WithLabelValues(statusLabel(ok)).Inc()
}

// WriteTextfile dumps the default registry in text exposition format, the
// layout node_exporter's textfile collector reads.
func WriteTextfile(path string) error {
	Init()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
