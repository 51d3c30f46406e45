package memory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus instruments.
type Metrics struct {
	Observations        *prometheus.CounterVec
	Dropped             *prometheus.CounterVec
	PatternsCreated     prometheus.Counter
	PatternsReinforced  prometheus.Counter
	PatternsEvicted     prometheus.Counter
	RecurringErrors     prometheus.Counter
	ConsolidateDuration prometheus.Histogram
	PersistFailures     *prometheus.CounterVec
	LongTermPatterns    prometheus.Gauge
	KnowledgeItems      prometheus.Gauge
}

// NewMetrics registers the engine metrics on reg. A nil reg gets a private
// registry so several engines can coexist in one process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Observations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "patternd_observations_total",
			Help: "Observations accepted by kind",
		}, []string{"kind"}),

		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "patternd_observations_dropped_total",
			Help: "Observations dropped before ingestion by reason",
		}, []string{"reason"}),

		PatternsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "patternd_patterns_created_total",
			Help: "Long-term patterns created by consolidation",
		}),

		PatternsReinforced: factory.NewCounter(prometheus.CounterOpts{
			Name: "patternd_patterns_reinforced_total",
			Help: "Pattern reinforcements applied by consolidation",
		}),

		PatternsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "patternd_patterns_evicted_total",
			Help: "Patterns evicted after decaying below the strength floor",
		}),

		RecurringErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "patternd_recurring_errors_total",
			Help: "Error observations whose type reached the recurrence threshold",
		}),

		ConsolidateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "patternd_consolidation_duration_seconds",
			Help:    "Duration of one consolidation cycle",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		PersistFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "patternd_persist_failures_total",
			Help: "Persistence gateway failures by operation",
		}, []string{"op"}),

		LongTermPatterns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "patternd_long_term_patterns",
			Help: "Patterns currently held in long-term memory",
		}),

		KnowledgeItems: factory.NewGauge(prometheus.GaugeOpts{
			Name: "patternd_knowledge_items",
			Help: "Entries currently held in the semantic tier",
		}),
	}
}
