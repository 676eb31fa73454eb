package web2pdf

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "web2pdf"

// Metrics holds the Prometheus series for renders and the pool. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	renders          *prometheus.CounterVec
	renderDuration   *prometheus.HistogramVec
	acquireWait      prometheus.Histogram
	handlesStarted   prometheus.Counter
	handlesDiscarded prometheus.Counter
	poolHandles      *prometheus.GaugeVec
}

// NewMetrics registers all series with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		renders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "renders_total",
			Help:      "Render jobs by source and outcome.",
		}, []string{"source", "outcome"}),
		renderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "render_duration_seconds",
			Help:      "End-to-end render time, including the wait for a handle.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"source"}),
		acquireWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "pool_acquire_wait_seconds",
			Help:      "Time spent waiting for a pool slot.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 9),
		}),
		handlesStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pool_handles_started_total",
			Help:      "Engines launched by the pool.",
		}),
		handlesDiscarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pool_handles_discarded_total",
			Help:      "Engines stopped after an unhealthy release.",
		}),
		poolHandles: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pool_handles",
			Help:      "Pool handles by state.",
		}, []string{"state"}),
	}
}

func (m *Metrics) observeRender(source SourceKind, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = KindOf(err).String()
	}
	m.renders.WithLabelValues(source.String(), outcome).Inc()
	m.renderDuration.WithLabelValues(source.String()).Observe(d.Seconds())
}

func (m *Metrics) observeAcquire(d time.Duration) {
	if m == nil {
		return
	}
	m.acquireWait.Observe(d.Seconds())
}

func (m *Metrics) handleStarted() {
	if m == nil {
		return
	}
	m.handlesStarted.Inc()
}

func (m *Metrics) handleDiscarded() {
	if m == nil {
		return
	}
	m.handlesDiscarded.Inc()
}

func (m *Metrics) setCapacity(n int) {
	if m == nil {
		return
	}
	m.poolHandles.WithLabelValues("capacity").Set(float64(n))
}

func (m *Metrics) setPool(inUse, available int) {
	if m == nil {
		return
	}
	m.poolHandles.WithLabelValues("in_use").Set(float64(inUse))
	m.poolHandles.WithLabelValues("available").Set(float64(available))
}
