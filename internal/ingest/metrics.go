package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesTotal counts visited files.
	// Labels: status (processed, skipped, failed)
	FilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Total number of files visited by ingestion runs",
		},
		[]string{"status"},
	)

	// DocumentsTotal counts chunk documents.
	// Labels: result (stored, failed)
	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total number of chunk documents stored or failed",
		},
		[]string{"result"},
	)

	// RunDuration tracks ingestion run latency.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docrag",
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Duration of ingestion runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
	)
)
