// Package metrics provides Prometheus metrics for the auxiliary file reader.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	backendOpensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auxquerier_backend_opens_total",
			Help: "Total number of auxiliary files opened by a backend",
		},
		[]string{"format"},
	)

	backendEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auxquerier_backend_evictions_total",
			Help: "Total number of open files released because another file was requested",
		},
		[]string{"format"},
	)

	irregularFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auxquerier_irregular_files_total",
			Help: "Total number of files found with an inconsistent sampling rate",
		},
		[]string{"format"},
	)

	framesReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auxquerier_frames_read_total",
			Help: "Total number of frames returned by reads",
		},
		[]string{"format"},
	)

	rangeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auxquerier_range_errors_total",
			Help: "Total number of reads rejected for an invalid frame range",
		},
		[]string{"bound"},
	)
)

func RecordOpen(format string) {
	backendOpensTotal.WithLabelValues(format).Inc()
}

func RecordEviction(format string) {
	backendEvictionsTotal.WithLabelValues(format).Inc()
}

func RecordIrregularFile(format string) {
	irregularFilesTotal.WithLabelValues(format).Inc()
}

func RecordRead(format string, frames int) {
	framesReadTotal.WithLabelValues(format).Add(float64(frames))
}

func RecordRangeError(bound string) {
	rangeErrorsTotal.WithLabelValues(bound).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
