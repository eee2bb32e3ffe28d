package metrics

import "github.com/prometheus/client_golang/prometheus"

// CallMetrics exposes counters/histograms for outbound call flows.
type CallMetrics struct {
	dialsTotal      *prometheus.CounterVec
	callDuration    prometheus.Histogram
	toolInvocations *prometheus.CounterVec
	transfersTotal  *prometheus.CounterVec
}

func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		dialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collections",
			Subsystem: "calls",
			Name:      "dials_total",
			Help:      "Total outbound dial attempts by outcome",
		}, []string{"status"}),
		callDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "collections",
			Subsystem: "calls",
			Name:      "duration_seconds",
			Help:      "Duration of connected calls from answer to teardown",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
		}),
		toolInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collections",
			Subsystem: "calls",
			Name:      "tool_invocations_total",
			Help:      "Total compliance tool invocations by tool and outcome",
		}, []string{"tool", "outcome"}),
		transfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collections",
			Subsystem: "calls",
			Name:      "transfers_total",
			Help:      "Total transfer-to-human attempts by outcome",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.dialsTotal, m.callDuration, m.toolInvocations, m.transfersTotal)
	return m
}

func (m *CallMetrics) ObserveDial(status string) {
	if m == nil {
		return
	}
	m.dialsTotal.WithLabelValues(status).Inc()
}

func (m *CallMetrics) ObserveCallDuration(seconds float64) {
	if m == nil {
		return
	}
	m.callDuration.Observe(seconds)
}

func (m *CallMetrics) ObserveTool(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolInvocations.WithLabelValues(tool, outcome).Inc()
}

func (m *CallMetrics) ObserveTransfer(status string) {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(status).Inc()
}
