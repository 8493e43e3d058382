package report

import (
	"fmt"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kitchenops"

type metrics struct {
	items       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	escalations *prometheus.CounterVec
	retries     *prometheus.CounterVec
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Recipes that reached a terminal state, by task and outcome.",
		}, []string{"task", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Time spent on one recipe, including retries.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"task"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Recipes routed to the AI service.",
		}, []string{"task"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Extra attempts made after transient failures.",
		}, []string{"task"}),
	}
	registry.MustRegister(m.items, m.duration, m.escalations, m.retries)
	return m
}

func (m *metrics) observe(task string, item *model.WorkItem) {
	m.items.WithLabelValues(task, string(item.State)).Inc()
	m.duration.WithLabelValues(task).Observe(item.Elapsed().Seconds())
	if item.Escalated {
		m.escalations.WithLabelValues(task).Inc()
	}
	if item.Attempts > 1 {
		m.retries.WithLabelValues(task).Add(float64(item.Attempts - 1))
	}
}

// Reporter hands out job reports that share one metrics registry per run.
type Reporter struct {
	registry *prometheus.Registry
	metrics  *metrics
}

// NewReporter creates a reporter with a fresh registry.
func NewReporter() *Reporter {
	registry := prometheus.NewRegistry()
	return &Reporter{registry: registry, metrics: newMetrics(registry)}
}

// Start begins a report for task.
func (r *Reporter) Start(task string) *JobReport {
	return newJobReport(task, r.metrics)
}

// Registry exposes the run's metrics.
func (r *Reporter) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the run's metrics in the text exposition format,
// for pickup by a node exporter textfile collector.
func (r *Reporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
