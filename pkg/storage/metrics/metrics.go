package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the collectors of one registry and the operations running
// through it. A nil *Metrics records nothing.
type Metrics struct {
	// Connections
	OpenHandles prometheus.Gauge
	Connects    *prometheus.CounterVec
	Reconnects  prometheus.Counter

	// Operations
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Write events
	EventsPublished *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		OpenHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_handles",
			Help:      "The number of client handles held by the registry",
		}),
		Connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "The total number of connection attempts",
		}, []string{"result"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "The total number of stale handles replaced",
		}),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "The total number of document operations",
		}, []string{"op", "result"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "The latency of document operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "The total number of write events published",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.OpenHandles, m.Connects, m.Reconnects, m.Operations, m.OperationDuration, m.EventsPublished)
	}
	return m
}

func (m *Metrics) SetOpenHandles(n int) {
	if m == nil {
		return
	}
	m.OpenHandles.Set(float64(n))
}

func (m *Metrics) ObserveConnect(err error) {
	if m == nil {
		return
	}
	m.Connects.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ObserveReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// ObserveOperation records one operation that started at start.
func (m *Metrics) ObserveOperation(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, result(err)).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObservePublish has the signature of pubsub.PublisherOptions.OnPublish.
func (m *Metrics) ObservePublish(_ string, err error, _ time.Duration) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
