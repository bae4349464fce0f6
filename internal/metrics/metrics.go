// Package metrics exposes prometheus collectors for the store operations.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/apperr"
)

// Verification outcomes.
const (
	VerifyValid    = "valid"
	VerifyMismatch = "mismatch"
	VerifyMissing  = "missing"
)

// Archive directions.
const (
	Export = "export"
	Import = "import"
)

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	opsTotal      *prometheus.CounterVec
	opDuration    *prometheus.HistogramVec
	verifications *prometheus.CounterVec
	archiveTime   *prometheus.HistogramVec
	archiveBytes  *prometheus.GaugeVec
	imageUploads  *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		opsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mdnotes_store_operations_total",
			Help: "Store operations by name and outcome",
		}, []string{"operation", "status"}),
		opDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mdnotes_store_operation_duration_seconds",
			Help:    "Store operation latency",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
		verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mdnotes_note_verifications_total",
			Help: "Note digest verifications by result",
		}, []string{"result"}),
		archiveTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mdnotes_archive_duration_seconds",
			Help:    "Time to export or import a project archive",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"direction", "status"}),
		archiveBytes: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mdnotes_archive_last_size_bytes",
			Help: "Size of the most recent archive by direction",
		}, []string{"direction"}),
		imageUploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mdnotes_image_uploads_total",
			Help: "Image uploads by result",
		}, []string{"result"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Status classifies err into a low-cardinality label.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrCorrupt):
		return "corrupt"
	default:
		return "error"
	}
}

// ObserveOp records one store operation that started at start.
func (m *Metrics) ObserveOp(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.opsTotal.WithLabelValues(op, Status(err)).Inc()
	m.opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObserveVerification counts one digest comparison.
func (m *Metrics) ObserveVerification(result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(result).Inc()
}

// ObserveArchive records an export or import.
func (m *Metrics) ObserveArchive(direction string, start time.Time, size int64, err error) {
	if m == nil {
		return
	}
	m.archiveTime.WithLabelValues(direction, Status(err)).Observe(time.Since(start).Seconds())
	if err == nil {
		m.archiveBytes.WithLabelValues(direction).Set(float64(size))
	}
}

// ObserveUpload counts an image upload as "stored", "duplicate" or a failure status.
func (m *Metrics) ObserveUpload(result string) {
	if m == nil {
		return
	}
	m.imageUploads.WithLabelValues(result).Inc()
}
