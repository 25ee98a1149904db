// Package metrics exposes Prometheus counters for transfer scanning.
//
// Every method is safe to call on a nil *Collector so callers that run
// without metrics (CLI, tests) need no special casing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name
const Namespace = "transferscan"

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Scan metrics
	CyclesStarted    *prometheus.CounterVec
	CyclesFinished   *prometheus.CounterVec
	CandidatesFound  prometheus.Counter
	RangesCommitted  prometheus.Counter
	LinksSaved       prometheus.Counter
	CollaboratorErrs *prometheus.CounterVec
}

// NewCollector creates a collector backed by its own registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		CyclesStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "scan_cycles_started_total",
				Help:      "Scan cycles started, by recommended direction",
			},
			[]string{"direction"},
		),
		CyclesFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "scan_cycles_finished_total",
				Help:      "Scan cycles finished, by final status",
			},
			[]string{"status"},
		),
		CandidatesFound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "transfer_candidates_found_total",
				Help:      "Transfer candidates proposed for review",
			},
		),
		RangesCommitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "checked_ranges_committed_total",
				Help:      "Checked range commits persisted",
			},
		),
		LinksSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "transfer_links_saved_total",
				Help:      "Accepted transfer candidates handed off as links",
			},
		),
		CollaboratorErrs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "collaborator_errors_total",
				Help:      "Failed calls to the data store, by operation",
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.CyclesStarted,
		c.CyclesFinished,
		c.CandidatesFound,
		c.RangesCommitted,
		c.LinksSaved,
		c.CollaboratorErrs,
	)

	return c
}

// Registry returns the Prometheus registry for this collector
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// CycleStarted records a new scan cycle and the candidates it proposed
func (c *Collector) CycleStarted(direction string, candidates int) {
	if c == nil {
		return
	}
	c.CyclesStarted.WithLabelValues(direction).Inc()
	c.CandidatesFound.Add(float64(candidates))
}

// CycleFinished records how a scan cycle ended
func (c *Collector) CycleFinished(status string) {
	if c == nil {
		return
	}
	c.CyclesFinished.WithLabelValues(status).Inc()
}

// RangeCommitted records a persisted checked range
func (c *Collector) RangeCommitted() {
	if c == nil {
		return
	}
	c.RangesCommitted.Inc()
}

// LinksHandedOff records accepted candidates written as links
func (c *Collector) LinksHandedOff(n int) {
	if c == nil {
		return
	}
	c.LinksSaved.Add(float64(n))
}

// CollaboratorError records a failed data store call
func (c *Collector) CollaboratorError(op string) {
	if c == nil {
		return
	}
	c.CollaboratorErrs.WithLabelValues(op).Inc()
}
