// Package telemetry provides Prometheus instrumentation for the catalog
// server: catalog composition gauges, reload timings and HTTP request
// metrics.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/compose-market/connector/internal/catalog"
)

// Metrics holds the catalog server's Prometheus collectors.
type Metrics struct {
	catalogServers  *prometheus.GaugeVec
	catalogMerged   prometheus.Gauge
	catalogBuiltAt  prometheus.Gauge
	reloadDuration  prometheus.Histogram
	reloadsTotal    *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics registers the catalog collectors with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		catalogServers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "connector",
			Name:      "catalog_servers",
			Help:      "Number of catalog records contributed by each origin.",
		}, []string{"origin"}),
		catalogMerged: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "connector",
			Name:      "catalog_merged_servers",
			Help:      "Number of catalog records formed by merging two or more sources.",
		}),
		catalogBuiltAt: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "connector",
			Name:      "catalog_built_timestamp_seconds",
			Help:      "Unix timestamp of the last successful catalog build.",
		}),
		reloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "connector",
			Name:      "catalog_reload_duration_seconds",
			Help:      "Duration of catalog rebuilds.",
			Buckets:   prometheus.DefBuckets,
		}),
		reloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connector",
			Name:      "catalog_reloads_total",
			Help:      "Catalog rebuild attempts by outcome.",
		}, []string{"outcome"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connector",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "connector",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveCatalog updates the catalog composition gauges after a build.
func (m *Metrics) ObserveCatalog(built *catalog.Catalog) {
	if m == nil || built == nil {
		return
	}

	stats := built.ComputeStats()

	m.catalogServers.Reset()
	for origin, count := range stats.ByOrigin {
		m.catalogServers.WithLabelValues(string(origin)).Set(float64(count))
	}
	m.catalogMerged.Set(float64(stats.MergedCount))
	m.catalogBuiltAt.Set(float64(built.BuiltAt.Unix()))
}

// ObserveReload records a rebuild attempt.
func (m *Metrics) ObserveReload(duration time.Duration, err error) {
	if m == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.reloadsTotal.WithLabelValues(outcome).Inc()
	if err == nil {
		m.reloadDuration.Observe(duration.Seconds())
	}
}
