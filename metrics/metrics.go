// Package metrics exports rental operation counters and latencies in the
// Prometheus text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/fleet-rental/fleet"
)

// Recorder implements rental.Recorder on its own registry.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	snapshots  *prometheus.CounterVec
}

// New creates a recorder with Go runtime and process collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleet",
			Name:      "operations_total",
			Help:      "Rental operations by outcome category.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fleet",
			Name:      "operation_duration_seconds",
			Help:      "Rental operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"op"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleet",
			Name:      "snapshots_published_total",
			Help:      "Snapshot publications by result.",
		}, []string{"result"}),
	}
	r.registry.MustRegister(
		r.operations,
		r.duration,
		r.snapshots,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Observe counts one operation. Successful operations are labelled "ok",
// failed ones by their error category.
func (r *Recorder) Observe(op string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(fleet.Category(err))
	}
	r.operations.WithLabelValues(op, outcome).Inc()
	r.duration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveSnapshot counts one snapshot publication.
func (r *Recorder) ObserveSnapshot(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.snapshots.WithLabelValues(result).Inc()
}

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }
