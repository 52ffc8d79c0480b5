// Package metrics holds the prometheus collectors for the ingest pipeline
// and a rolling latency tracker for OCR calls.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is exposed on /metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		FilesTotal, PagesTotal, OCRFailuresTotal, OCRDuration,
		TableRowsTotal, TableFailuresTotal, ChunksTotal, JobsTotal,
	)
}

// FilesTotal counts PDF files by outcome: assembled | skipped | failed.
var FilesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pdfingest_files_total",
		Help: "PDF files seen by the assembler, by outcome.",
	},
	[]string{"result"},
)

// PagesTotal counts pages by text provenance: digital | ocr.
var PagesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pdfingest_pages_total",
		Help: "Pages extracted, by text source.",
	},
	[]string{"source"},
)

var OCRFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "pdfingest_ocr_failures_total",
	Help: "Rasterisation or OCR calls that returned an error.",
})

var OCRDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Name:    "pdfingest_ocr_duration_seconds",
	Help:    "Time to rasterise and OCR one page.",
	Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
})

var TableRowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "pdfingest_table_rows_total",
	Help: "Table data rows rendered into page text.",
})

var TableFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "pdfingest_table_failures_total",
	Help: "Pages whose table extraction failed and were treated as table-free.",
})

var ChunksTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "pdfingest_chunks_total",
	Help: "Chunks emitted by the splitter.",
})

// JobsTotal counts finished ingest jobs by terminal status.
var JobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pdfingest_jobs_total",
		Help: "Ingest jobs by terminal status.",
	},
	[]string{"status"},
)

// Handler serves Registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
