package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
)

const outcomeOK = "ok"

// OrderMetrics records order-core operations. A nil *OrderMetrics is a no-op.
type OrderMetrics struct {
	duration    *prometheus.HistogramVec
	operations  *prometheus.CounterVec
	transitions *prometheus.CounterVec
	notifyFails *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on reg under namespace.
func NewOrderMetrics(namespace string, reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of order operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Order operations by outcome (ok or error code).",
	}, []string{"operation", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shipment_transitions_total",
		Help:      "Applied shipment status transitions.",
	}, []string{"from", "to"})
	notifyFails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Post-commit notifications that could not be delivered.",
	}, []string{"event"})
	reg.MustRegister(duration, operations, transitions, notifyFails)
	return &OrderMetrics{
		duration:    duration,
		operations:  operations,
		transitions: transitions,
		notifyFails: notifyFails,
	}
}

// ObserveOperation records how long op took and whether it failed.
func (m *OrderMetrics) ObserveOperation(op string, started time.Time, err error) {
	if m == nil || m.duration == nil {
		return
	}
	op = normalizeLabel(op)
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	m.operations.WithLabelValues(op, outcome(err)).Inc()
}

// IncShipmentTransition counts an applied from -> to transition.
func (m *OrderMetrics) IncShipmentTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncNotificationFailure counts a dropped post-commit notification.
func (m *OrderMetrics) IncNotificationFailure(event string) {
	if m == nil || m.notifyFails == nil {
		return
	}
	m.notifyFails.WithLabelValues(normalizeLabel(event)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	return string(pkgerrors.CodeInternal)
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
