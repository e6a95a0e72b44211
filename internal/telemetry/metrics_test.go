package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestObservePickIncrementsLabelledCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObservePick(true, true)
	m.ObservePick(false, true)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var found *dto.MetricFamily
	for _, mf := range metrics {
		if mf.GetName() == "tunnelmgr_selector_picks_total" {
			found = mf
		}
	}
	if found == nil {
		t.Fatal("expected tunnelmgr_selector_picks_total to be registered")
	}
	if len(found.Metric) != 2 {
		t.Fatalf("expected 2 label combinations recorded, got %d", len(found.Metric))
	}
}

func TestObserveActivateAndReconnect(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveActivate(true)
	m.ObserveActivate(false)
	m.ObserveReconnect(true)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	names := map[string]bool{}
	for _, mf := range metrics {
		names[mf.GetName()] = true
	}
	if !names["tunnelmgr_activate_attempts_total"] {
		t.Fatal("expected tunnelmgr_activate_attempts_total to be registered")
	}
	if !names["tunnelmgr_reconnect_attempts_total"] {
		t.Fatal("expected tunnelmgr_reconnect_attempts_total to be registered")
	}
}
