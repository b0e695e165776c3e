package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's prometheus collectors on a private registry,
// so several servers (and tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	LookupsTotal    *prometheus.CounterVec
	RendersTotal    *prometheus.CounterVec
	RenderDuration  *prometheus.HistogramVec
	PinsTotal       prometheus.Gauge
	RegionsLoaded   prometheus.Gauge
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pinmap_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pinmap_http_request_duration_ms",
			Help:    "HTTP request duration in milliseconds",
			Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
		}, []string{"route"}),
		LookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pinmap_lookups_total",
			Help: "Region lookups by result (found, miss)",
		}, []string{"result"}),
		RendersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pinmap_renders_total",
			Help: "Rendered images by format (svg, png, tile)",
		}, []string{"format"}),
		RenderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pinmap_render_duration_ms",
			Help:    "Render duration in milliseconds",
			Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
		}, []string{"format"}),
		PinsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pinmap_pins",
			Help: "Number of pins in the collection",
		}),
		RegionsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pinmap_regions_loaded",
			Help: "Number of loaded regions (0 while loading)",
		}),
	}
	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.LookupsTotal,
		m.RendersTotal,
		m.RenderDuration,
		m.PinsTotal,
		m.RegionsLoaded,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
