package kevent

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the listener's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Messages     *prometheus.CounterVec
	DrainPasses  *prometheus.CounterVec
	OpenFailures *prometheus.CounterVec
	Sockets      *prometheus.GaugeVec
	Dropped      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keventd",
			Name:      "messages_total",
			Help:      "Datagrams received from netlink sockets.",
		}, []string{"protocol"}),
		DrainPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keventd",
			Name:      "drain_passes_total",
			Help:      "Drain passes by the reason they stopped.",
		}, []string{"protocol", "reason"}),
		OpenFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keventd",
			Name:      "socket_open_failures_total",
			Help:      "Netlink sockets that could not be opened, by failing stage.",
		}, []string{"protocol", "stage"}),
		Sockets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "keventd",
			Name:      "active_sockets",
			Help:      "Open netlink sockets.",
		}, []string{"protocol"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keventd",
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers disconnected for falling too far behind.",
		}, []string{"protocol"}),
	}
	if reg != nil {
		reg.MustRegister(m.Messages, m.DrainPasses, m.OpenFailures, m.Sockets, m.Dropped)
	}
	return m
}

func (m *Metrics) drained(p Protocol, res DrainResult) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(p.String()).Add(float64(res.Messages))
	m.DrainPasses.WithLabelValues(p.String(), res.Reason.String()).Inc()
}

func (m *Metrics) openFailed(p Protocol, stage string) {
	if m == nil {
		return
	}
	m.OpenFailures.WithLabelValues(p.String(), stage).Inc()
}

func (m *Metrics) socketOpened(p Protocol) {
	if m == nil {
		return
	}
	m.Sockets.WithLabelValues(p.String()).Inc()
}

func (m *Metrics) socketClosed(p Protocol) {
	if m == nil {
		return
	}
	m.Sockets.WithLabelValues(p.String()).Dec()
}

func (m *Metrics) subscriberDropped(p Protocol) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(p.String()).Inc()
}
