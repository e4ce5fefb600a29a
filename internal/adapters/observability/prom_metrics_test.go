package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// NewPromObs registers with the default registry, so construct once.
var obs = NewPromObs()

func TestPromObsCounters(t *testing.T) {
	obs.IncCounter("scopeout_waveforms_acquired_total", 2)

	c := obs.counters["scopeout_waveforms_acquired_total"]
	if got := testutil.ToFloat64(c); got != 2 {
		t.Fatalf("expected counter 2, got %v", got)
	}

	// Unknown names are ignored rather than panicking.
	obs.IncCounter("scopeout_unknown_total", 1)
}

func TestPromObsGauge(t *testing.T) {
	obs.SetGauge("scopeout_instruments_connected", 1)

	g := obs.gauges["scopeout_instruments_connected"]
	if got := testutil.ToFloat64(g); got != 1 {
		t.Fatalf("expected gauge 1, got %v", got)
	}

	obs.SetGauge("scopeout_instruments_connected", 0)
	if got := testutil.ToFloat64(g); got != 0 {
		t.Fatalf("expected gauge 0, got %v", got)
	}
}

func TestPromObsLatencyUnknownName(t *testing.T) {
	// Must not panic on names without a registered histogram.
	obs.ObserveLatency("scopeout_missing_seconds", 0.5)
}
