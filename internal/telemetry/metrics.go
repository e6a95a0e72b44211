// Package telemetry implements manager.Telemetry with Prometheus
// counters, registered against the default registry unless the caller
// supplies its own.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics implements manager.Telemetry.
type Metrics struct {
	picksTotal      *prometheus.CounterVec
	activatesTotal  *prometheus.CounterVec
	reconnectsTotal *prometheus.CounterVec
}

// New registers and returns a Metrics. Passing a nil registerer
// registers against prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		picksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tunnelmgr",
			Subsystem: "selector",
			Name:      "picks_total",
			Help:      "Number of tunnel selections made by the weighted selector, labelled by outcome.",
		}, []string{"punished", "rewarded"}),
		activatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tunnelmgr",
			Subsystem: "activate",
			Name:      "attempts_total",
			Help:      "Number of activation attempts, labelled by outcome.",
		}, []string{"success"}),
		reconnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tunnelmgr",
			Subsystem: "reconnect",
			Name:      "attempts_total",
			Help:      "Number of reconnect attempts, labelled by outcome.",
		}, []string{"success"}),
	}

	reg.MustRegister(m.picksTotal, m.activatesTotal, m.reconnectsTotal)
	return m
}

// ObservePick implements manager.Telemetry.
func (m *Metrics) ObservePick(punished, rewarded bool) {
	m.picksTotal.WithLabelValues(boolLabel(punished), boolLabel(rewarded)).Inc()
}

// ObserveActivate implements manager.Telemetry.
func (m *Metrics) ObserveActivate(success bool) {
	m.activatesTotal.WithLabelValues(boolLabel(success)).Inc()
}

// ObserveReconnect implements manager.Telemetry.
func (m *Metrics) ObserveReconnect(success bool) {
	m.reconnectsTotal.WithLabelValues(boolLabel(success)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
