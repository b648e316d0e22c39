package provision

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kbforge/indexpool/internal/store"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Metrics exposes the pool's state and cycle outcomes. Gauges are
// refreshed from every pool-stats read; counters track per-index provision
// and teardown attempts.
type Metrics struct {
	poolSize       *prometheus.GaugeVec
	provisionTotal *prometheus.CounterVec
	cleanupTotal   *prometheus.CounterVec
}

// NewMetrics registers the provisioner metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		poolSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "indexpool",
			Name:      "indexes",
			Help:      "Number of vector-index records by status.",
		}, []string{"status"}),
		provisionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexpool",
			Name:      "provision_total",
			Help:      "Vector-index provisioning attempts by outcome.",
		}, []string{"outcome"}),
		cleanupTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexpool",
			Name:      "cleanup_total",
			Help:      "Vector-index teardown attempts by outcome.",
		}, []string{"outcome"}),
	}
}

// observeStats refreshes the per-status gauges. The freshness filter on
// PROVISIONING means the gauge reflects pool capacity, not raw row counts.
func (m *Metrics) observeStats(stats store.PoolStats) {
	m.poolSize.WithLabelValues(string(store.StatusAvailable)).Set(float64(stats.Available))
	m.poolSize.WithLabelValues(string(store.StatusProvisioning)).Set(float64(stats.Provisioning))
	m.poolSize.WithLabelValues(string(store.StatusFailed)).Set(float64(stats.Failed))
	m.poolSize.WithLabelValues(string(store.StatusCleanup)).Set(float64(stats.Cleanup))
	m.poolSize.WithLabelValues(string(store.StatusDestroyed)).Set(float64(stats.Destroyed))
}

func (m *Metrics) observeProvision(err error) {
	if err != nil {
		m.provisionTotal.WithLabelValues(outcomeFailure).Inc()
		return
	}
	m.provisionTotal.WithLabelValues(outcomeSuccess).Inc()
}

func (m *Metrics) observeCleanup(err error) {
	if err != nil {
		m.cleanupTotal.WithLabelValues(outcomeFailure).Inc()
		return
	}
	m.cleanupTotal.WithLabelValues(outcomeSuccess).Inc()
}
