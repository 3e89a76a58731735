// Package metrics собирает Prometheus-метрики жизненного цикла заявок.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "askgrandpa"

// Metrics счётчики переходов, уведомлений и напоминаний
type Metrics struct {
	Transitions   *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	Reminders     *prometheus.CounterVec
	PublishErrors *prometheus.CounterVec
	ScanDuration  prometheus.Histogram
}

// New создаёт и регистрирует метрики. При reg == nil метрики не регистрируются.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_transitions_total",
			Help:      "Request state transitions by transition name and result.",
		}, []string{"transition", "result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications by template and result.",
		}, []string{"template", "result"}),
		Reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_outcomes_total",
			Help:      "Reminder scan outcomes per confirmed request.",
		}, []string{"outcome"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "Domain events that could not be published.",
		}, []string{"type"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reminder_scan_duration_seconds",
			Help:      "Duration of a reminder scan.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Transitions, m.Notifications, m.Reminders, m.PublishErrors, m.ScanDuration)
	}

	return m
}

// Result метка результата для счётчиков
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
