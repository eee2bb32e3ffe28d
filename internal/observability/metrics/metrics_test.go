package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCallMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCallMetrics(reg)
	m.ObserveDial("answered")
	m.ObserveCallDuration(42.5)
	m.ObserveTool("verify_identity", "success")
	m.ObserveTransfer("refused")
}

func TestCallMetricsNilSafe(t *testing.T) {
	var m *CallMetrics
	m.ObserveDial("failed")
	m.ObserveCallDuration(1)
	m.ObserveTool("dispute_debt", "success")
	m.ObserveTransfer("completed")
}
