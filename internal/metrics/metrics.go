// Package metrics exposes Prometheus counters for lifecycle and backup
// operations. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	registry *prometheus.Registry

	lifecycle      *prometheus.CounterVec
	backups        *prometheus.CounterVec
	backupDuration prometheus.Histogram
	backupSize     prometheus.Gauge
}

// New creates a registry with the spud collectors plus the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		lifecycle: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spud",
			Name:      "lifecycle_operations_total",
			Help:      "Server lifecycle operations by operation and result.",
		}, []string{"op", "result"}),
		backups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spud",
			Name:      "backups_total",
			Help:      "Backups by scope, mode and result.",
		}, []string{"scope", "mode", "result"}),
		backupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spud",
			Name:      "backup_duration_seconds",
			Help:      "Wall time of successful backups.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		backupSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "spud",
			Name:      "backup_size_bytes",
			Help:      "Size of the most recent successful backup.",
		}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveLifecycle counts one lifecycle operation.
func (m *Metrics) ObserveLifecycle(op string, err error) {
	if m == nil {
		return
	}
	m.lifecycle.WithLabelValues(op, result(err)).Inc()
}

// ObserveBackup counts one backup and, on success, records its duration
// and size.
func (m *Metrics) ObserveBackup(scope, mode string, took time.Duration, size int64, err error) {
	if m == nil {
		return
	}
	m.backups.WithLabelValues(scope, mode, result(err)).Inc()
	if err != nil {
		return
	}
	m.backupDuration.Observe(took.Seconds())
	m.backupSize.Set(float64(size))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
