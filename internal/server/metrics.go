package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the search server.
// Each instance owns an isolated registry, so tests can create as many as they need.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal          *prometheus.CounterVec
	RequestDurationSeconds *prometheus.HistogramVec

	LookupsTotal   *prometheus.CounterVec
	LookupResults  *prometheus.HistogramVec
	ShardsServed   *prometheus.CounterVec
	CatalogEntries prometheus.Gauge
	CatalogReloads *prometheus.CounterVec

	BuildInfo *prometheus.GaugeVec
}

// NewMetrics registers every collector on a fresh registry
func NewMetrics(version, goVersion string) *Metrics {
	reg := prometheus.NewRegistry()

	// Standard Go runtime + process metrics
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doxsearch_http_requests_total",
				Help: "Total number of HTTP requests served.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "doxsearch_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
			},
			[]string{"method", "path", "status"},
		),

		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doxsearch_lookups_total",
				Help: "Total number of symbol lookups by kind and result.",
			},
			[]string{"kind", "result"},
		),
		LookupResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "doxsearch_lookup_results",
				Help:    "Number of entries returned per lookup.",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 200},
			},
			[]string{"kind"},
		),
		ShardsServed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doxsearch_shards_served_total",
				Help: "Total number of shard files served.",
			},
			[]string{"section"},
		),
		CatalogEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "doxsearch_catalog_entries",
				Help: "Number of entries in the all section of the active catalog.",
			},
		),
		CatalogReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doxsearch_catalog_reloads_total",
				Help: "Total number of catalog reloads by result.",
			},
			[]string{"result"},
		),

		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "doxsearch_info",
				Help: "Build information about the running server.",
			},
			[]string{"version", "go_version"},
		),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSeconds,
		m.LookupsTotal,
		m.LookupResults,
		m.ShardsServed,
		m.CatalogEntries,
		m.CatalogReloads,
		m.BuildInfo,
	)

	m.BuildInfo.WithLabelValues(version, goVersion).Set(1)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
