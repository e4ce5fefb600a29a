package observability

import (
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SeanMcGrath/ScopeOut/internal/ports"
)

type PromObs struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

func NewPromObs() *PromObs {
	acquired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scopeout_waveforms_acquired_total",
		Help: "Waveforms successfully captured and emitted.",
	})
	acqErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scopeout_acquisition_errors_total",
		Help: "Captures abandoned due to instrument or stop-flag errors.",
	})
	storeFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scopeout_store_failures_total",
		Help: "Waveforms the persistence collaborator rolled back.",
	})
	transitions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scopeout_discovery_transitions_total",
		Help: "Discovery state changes between searching and connected.",
	})
	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scopeout_instruments_connected",
		Help: "Number of classified instruments currently visible.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scopeout_capture_latency_seconds",
		Help:    "Latency of one capture cycle against the instrument.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	prometheus.MustRegister(acquired, acqErrors, storeFailures, transitions, connected, latency)

	return &PromObs{
		counters: map[string]prometheus.Counter{
			"scopeout_waveforms_acquired_total":    acquired,
			"scopeout_acquisition_errors_total":    acqErrors,
			"scopeout_store_failures_total":        storeFailures,
			"scopeout_discovery_transitions_total": transitions,
		},
		gauges: map[string]prometheus.Gauge{
			"scopeout_instruments_connected": connected,
		},
		histos: map[string]prometheus.Observer{
			"scopeout_capture_latency_seconds": latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	log.Printf("INFO: %s%s", msg, formatFields(fields))
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("ERROR: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func formatFields(fields []ports.Field) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}
