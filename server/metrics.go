package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 服务指标
type Metrics struct {
	// TilesServed counts 200 responses by source: cache, disk or render.
	TilesServed *prometheus.CounterVec
	// NotModified counts 304 responses.
	NotModified prometheus.Counter
	// RenderErrors counts failed renders by reason: not_found or error.
	RenderErrors *prometheus.CounterVec
	// RenderDuration tracks renderer latency.
	RenderDuration prometheus.Histogram
	// StoreFailures counts rendered tiles the Durable Tile Writer could not persist.
	StoreFailures prometheus.Counter
}

// NewMetrics registers the metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TilesServed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tilecache_tiles_served_total",
				Help: "Total number of tiles served",
			},
			[]string{"source"},
		),
		NotModified: f.NewCounter(prometheus.CounterOpts{
			Name: "tilecache_not_modified_total",
			Help: "Total number of 304 responses",
		}),
		RenderErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tilecache_render_errors_total",
				Help: "Total number of failed renders",
			},
			[]string{"reason"},
		),
		RenderDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tilecache_render_duration_seconds",
			Help:    "Duration of tile renders in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		StoreFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "tilecache_store_failures_total",
			Help: "Total number of rendered tiles that could not be stored",
		}),
	}
}
