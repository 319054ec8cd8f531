package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds the Prometheus collectors of the api and the worker.
type Metrics struct {
	MessagesSentTotal   prometheus.Counter
	MessagesFailedTotal *prometheus.CounterVec

	WebhookEventsTotal *prometheus.CounterVec
	DispatchTasksTotal *prometheus.CounterVec
	AlertsRaisedTotal  *prometheus.CounterVec

	DispatchTaskDurationSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		MessagesSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "smartzap_messages_sent_total",
				Help: "Template messages accepted by the Cloud API",
			},
		),
		MessagesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartzap_messages_failed_total",
				Help: "Template sends rejected by the Cloud API, by error category",
			},
			[]string{"category"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartzap_webhook_status_events_total",
				Help: "Status callbacks received, by status and outcome",
			},
			[]string{"status", "outcome"},
		),
		DispatchTasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartzap_dispatch_tasks_total",
				Help: "Dispatch tasks executed, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		AlertsRaisedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartzap_account_alerts_raised_total",
				Help: "Account alerts upserted after critical errors, by category",
			},
			[]string{"category"},
		),
		DispatchTaskDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smartzap_dispatch_task_duration_seconds",
				Help:    "Dispatch task execution time",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.MessagesSentTotal,
		m.MessagesFailedTotal,
		m.WebhookEventsTotal,
		m.DispatchTasksTotal,
		m.AlertsRaisedTotal,
		m.DispatchTaskDurationSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

func IncMessagesSent() {
	if m := Global(); m != nil {
		m.MessagesSentTotal.Inc()
	}
}

func IncMessagesFailed(category string) {
	if m := Global(); m != nil {
		m.MessagesFailedTotal.WithLabelValues(category).Inc()
	}
}

// IncWebhookEvent counts a status callback. outcome is applied, duplicate,
// stale, unknown or error.
func IncWebhookEvent(status, outcome string) {
	if m := Global(); m != nil {
		m.WebhookEventsTotal.WithLabelValues(status, outcome).Inc()
	}
}

func IncDispatchTask(kind, outcome string) {
	if m := Global(); m != nil {
		m.DispatchTasksTotal.WithLabelValues(kind, outcome).Inc()
	}
}

func ObserveDispatchTask(kind string, seconds float64) {
	if m := Global(); m != nil {
		m.DispatchTaskDurationSeconds.WithLabelValues(kind).Observe(seconds)
	}
}

func IncAlertRaised(category string) {
	if m := Global(); m != nil {
		m.AlertsRaisedTotal.WithLabelValues(category).Inc()
	}
}
