// Package metrics provides Prometheus metrics for the arrivals service.
package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the fetch and reload counters.
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeThrottled   = "throttled"
	OutcomeNotModified = "not_modified"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Upstream feed metrics
	FeedFetchesTotal      *prometheus.CounterVec
	FeedFetchDuration     prometheus.Histogram
	FeedResponseBytes     prometheus.Histogram
	FeedDecodeErrorsTotal prometheus.Counter
	FeedPredictions       prometheus.Gauge

	// Static catalog metrics
	CatalogStops          prometheus.Gauge
	CatalogTrips          prometheus.Gauge
	CatalogRoutes         prometheus.Gauge
	CatalogReloadsTotal   *prometheus.CounterVec
	CatalogLastLoadedTime prometheus.Gauge

	// logger for error reporting
	logger *slog.Logger
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for error reporting.
func NewWithLogger(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buswisely_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "buswisely_http_request_duration_seconds",
				Help:    "HTTP request latency distribution",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		FeedFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buswisely_feed_fetches_total",
				Help: "Upstream realtime feed fetches by outcome",
			},
			[]string{"outcome"},
		),
		FeedFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "buswisely_feed_fetch_duration_seconds",
			Help:    "Upstream realtime feed fetch latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		FeedResponseBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "buswisely_feed_response_bytes",
			Help:    "Size of decoded upstream feed bodies",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
		}),
		FeedDecodeErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buswisely_feed_decode_errors_total",
			Help: "Upstream feed bodies that could not be decoded",
		}),
		FeedPredictions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "buswisely_feed_predictions",
			Help: "Stop-time arrival predictions in the most recently decoded feed",
		}),
		CatalogStops: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "buswisely_catalog_stops",
			Help: "Stops in the active catalog",
		}),
		CatalogTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "buswisely_catalog_trips",
			Help: "Trips in the active catalog",
		}),
		CatalogRoutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "buswisely_catalog_routes",
			Help: "Routes in the active catalog",
		}),
		CatalogReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buswisely_catalog_reloads_total",
				Help: "Catalog load attempts by outcome",
			},
			[]string{"outcome"},
		),
		CatalogLastLoadedTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "buswisely_catalog_last_loaded_timestamp_seconds",
			Help: "Unix time of the last successful catalog load",
		}),
		logger: logger,
	}

	// Register all metrics with the custom registry
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.FeedFetchesTotal,
		m.FeedFetchDuration,
		m.FeedResponseBytes,
		m.FeedDecodeErrorsTotal,
		m.FeedPredictions,
		m.CatalogStops,
		m.CatalogTrips,
		m.CatalogRoutes,
		m.CatalogReloadsTotal,
		m.CatalogLastLoadedTime,
	)

	return m
}

// ObserveFeedFetch records one upstream fetch. Safe on a nil receiver.
func (m *Metrics) ObserveFeedFetch(outcome string, duration time.Duration, size int) {
	if m == nil {
		return
	}
	m.FeedFetchesTotal.WithLabelValues(outcome).Inc()
	m.FeedFetchDuration.Observe(duration.Seconds())
	if outcome == OutcomeSuccess {
		m.FeedResponseBytes.Observe(float64(size))
	}
}

// ObserveFeedDecode records the result of decoding a feed body.
func (m *Metrics) ObserveFeedDecode(predictions int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.FeedDecodeErrorsTotal.Inc()
		return
	}
	m.FeedPredictions.Set(float64(predictions))
}

// ObserveCatalogLoad records a catalog load attempt. Sizes are only applied
// when the outcome is a success.
func (m *Metrics) ObserveCatalogLoad(outcome string, stops, trips, routes int, at time.Time) {
	if m == nil {
		return
	}
	m.CatalogReloadsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSuccess {
		return
	}
	m.CatalogStops.Set(float64(stops))
	m.CatalogTrips.Set(float64(trips))
	m.CatalogRoutes.Set(float64(routes))
	m.CatalogLastLoadedTime.Set(float64(at.Unix()))
	if m.logger != nil {
		m.logger.Debug("catalog metrics updated",
			slog.Int("stops", stops),
			slog.Int("trips", trips),
			slog.Int("routes", routes))
	}
}
