// Package metrics exposes the schedule service's prometheus instruments.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Schedule records schedule mutations and the health of persisted schedules.
type Schedule struct {
	registry     *prometheus.Registry
	operations   *prometheus.CounterVec
	conflicts    prometheus.Counter
	unbalanced   prometheus.Counter
	coverageGaps prometheus.Counter
	installments prometheus.Histogram
}

// NewSchedule registers the schedule instruments on a fresh registry.
func NewSchedule() *Schedule {
	m := &Schedule{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echeancier",
			Name:      "schedule_operations_total",
			Help:      "Schedule mutations by operation and strategy.",
		}, []string{"operation", "strategy"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "echeancier",
			Name:      "schedule_version_conflicts_total",
			Help:      "Saves rejected because the quote changed concurrently.",
		}),
		unbalanced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "echeancier",
			Name:      "schedule_unbalanced_saves_total",
			Help:      "Saved schedules whose percentages do not add up to 100.",
		}),
		coverageGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "echeancier",
			Name:      "schedule_coverage_gap_saves_total",
			Help:      "Saved schedules that do not cover the billable lines.",
		}),
		installments: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "echeancier",
			Name:      "schedule_installments",
			Help:      "Number of installments per saved schedule.",
			Buckets:   []float64{1, 2, 3, 4, 6, 12, 24},
		}),
	}
	m.registry.MustRegister(m.operations, m.conflicts, m.unbalanced, m.coverageGaps, m.installments)
	return m
}

// Operation counts one schedule mutation. strategy is empty for edits.
func (m *Schedule) Operation(operation, strategy string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, strategy).Inc()
}

// Conflict counts one rejected save.
func (m *Schedule) Conflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// Saved observes the health of a persisted schedule.
func (m *Schedule) Saved(count int, balanced, coverageGap bool) {
	if m == nil {
		return
	}
	m.installments.Observe(float64(count))
	if !balanced {
		m.unbalanced.Inc()
	}
	if coverageGap {
		m.coverageGaps.Inc()
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Schedule) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Schedule) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
