package driver

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts driver activity for Prometheus. All methods are nil-safe
// so the driver can run without a metrics registry.
type Metrics struct {
	snapshotsPublished prometheus.Counter
	scansReceived      prometheus.Counter
	decodeFailures     prometheus.Counter
	paymentsConfirmed  prometheus.Counter
}

// NewMetrics registers the driver counters on reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		snapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "supercart",
			Subsystem: "driver",
			Name:      "snapshots_published_total",
			Help:      "Cart snapshots published to the payment topic.",
		}),
		scansReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "supercart",
			Subsystem: "driver",
			Name:      "scans_received_total",
			Help:      "Inbound product identifiers accepted from the scan topic.",
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "supercart",
			Subsystem: "driver",
			Name:      "decode_failures_total",
			Help:      "Inbound messages dropped because no product identifier could be extracted.",
		}),
		paymentsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "supercart",
			Subsystem: "driver",
			Name:      "payments_confirmed_total",
			Help:      "Payment confirmations that transitioned a session to paid.",
		}),
	}
	reg.MustRegister(m.snapshotsPublished, m.scansReceived, m.decodeFailures, m.paymentsConfirmed)
	return m
}

func (m *Metrics) snapshotPublished() {
	if m != nil {
		m.snapshotsPublished.Inc()
	}
}

func (m *Metrics) scanReceived() {
	if m != nil {
		m.scansReceived.Inc()
	}
}

func (m *Metrics) decodeFailure() {
	if m != nil {
		m.decodeFailures.Inc()
	}
}

func (m *Metrics) paymentConfirmed() {
	if m != nil {
		m.paymentsConfirmed.Inc()
	}
}
