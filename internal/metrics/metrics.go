// Package metrics exposes Prometheus metrics for the list service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/spacetraveling/internal/feed"
)

const namespace = "spacetraveling"

// Collector owns a private registry so tests and multiple servers do not
// collide on the global one.
type Collector struct {
	registry *prometheus.Registry

	loadMoreTotal   *prometheus.CounterVec
	viewsActive     prometheus.Gauge
	cmsDuration     *prometheus.HistogramVec
	snapshotBuiltAt prometheus.Gauge
}

// New creates a collector and records the build version.
func New(version string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	c := &Collector{registry: reg}

	c.loadMoreTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_more_total",
			Help:      "Load more requests by outcome",
		},
		[]string{"outcome"}, // loaded, exhausted, busy, failed
	)

	c.viewsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "views_active",
			Help:      "Number of mounted list views",
		},
	)

	c.cmsDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cms_request_duration_seconds",
			Help:      "Duration of content API requests in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 8), // 50ms to ~6s
		},
		[]string{"op", "result"},
	)

	c.snapshotBuiltAt = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_built_timestamp_seconds",
			Help:      "Build time of the first-page snapshot being served",
		},
	)

	factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version"},
	).WithLabelValues(version).Set(1)

	return c
}

// ObserveLoadMore counts one LoadMore result.
func (c *Collector) ObserveLoadMore(o feed.Outcome) {
	c.loadMoreTotal.WithLabelValues(o.String()).Inc()
}

// SetViewsActive records the number of mounted views.
func (c *Collector) SetViewsActive(n int) {
	c.viewsActive.Set(float64(n))
}

// SetSnapshotBuiltAt records when the served snapshot was built.
func (c *Collector) SetSnapshotBuiltAt(t time.Time) {
	c.snapshotBuiltAt.Set(float64(t.Unix()))
}

// ObserveRequest implements cms.RequestObserver.
func (c *Collector) ObserveRequest(op string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.cmsDuration.WithLabelValues(op, result).Observe(elapsed.Seconds())
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
