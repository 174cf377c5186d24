package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "ws_router"

// Label values.
const (
	OutcomeAccepted     = "accepted"
	OutcomeInvalid      = "invalid"
	OutcomeUnauthorized = "unauthorized"
	OutcomeDelivered    = "delivered"
	OutcomeFailed       = "failed"

	SourceConnection = "connection"
	SourceProducer   = "producer"
)

// Metrics holds the Prometheus collectors of the router. A nil *Metrics is a no-op.
type Metrics struct {
	connections prometheus.Gauge
	opens       *prometheus.CounterVec
	requests    *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	fanout      prometheus.Histogram
}

// NewMetrics creates and registers the router collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections",
			Help:      "Number of connections currently registered in the tag index",
		}),
		opens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connection_opens_total",
			Help:      "Connection open attempts by outcome",
		}, []string{"outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Publish requests by source and outcome",
		}, []string{"source", "outcome"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deliveries_total",
			Help:      "Per-recipient deliveries by outcome",
		}, []string{"outcome"}),
		fanout: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "fanout_recipients",
			Help:      "Number of matched recipients per accepted request",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}

	for _, c := range []prometheus.Collector{m.connections, m.opens, m.requests, m.deliveries, m.fanout} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) setConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}

func (m *Metrics) open(outcome string) {
	if m == nil {
		return
	}
	m.opens.WithLabelValues(outcome).Inc()
}

func (m *Metrics) request(source, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) delivered(ok, failed, recipients int) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(OutcomeDelivered).Add(float64(ok))
	m.deliveries.WithLabelValues(OutcomeFailed).Add(float64(failed))
	m.fanout.Observe(float64(recipients))
}
