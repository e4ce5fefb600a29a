package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SeanMcGrath/ScopeOut/internal/domain"
	"github.com/SeanMcGrath/ScopeOut/internal/ports"
)

type fakeInstrument struct {
	id        string
	trigState ports.TriggerState
	trigErr   error
	closed    bool
}

func (f *fakeInstrument) ID() string                   { return f.id }
func (f *fakeInstrument) Write(string) error           { return nil }
func (f *fakeInstrument) Query(string) (string, error) { return "", nil }
func (f *fakeInstrument) ChannelCount() int            { return 2 }
func (f *fakeInstrument) TriggerStatus() (ports.TriggerState, error) {
	return f.trigState, f.trigErr
}
func (f *fakeInstrument) SetDataChannel(string) (bool, error)        { return true, nil }
func (f *fakeInstrument) CaptureWaveform() (*domain.Waveform, error) { return nil, nil }
func (f *fakeInstrument) AutoSet() error                             { return nil }
func (f *fakeInstrument) Close() error {
	f.closed = true
	return nil
}

type fakeConn struct{}

func (fakeConn) WriteLine(string) error    { return nil }
func (fakeConn) ReadLine() (string, error) { return "", nil }
func (fakeConn) Close() error              { return nil }

type fakeRM struct {
	mu         sync.Mutex
	resources  []string
	listErr    error
	openErr    error
	resetCalls int
}

func (f *fakeRM) ListResources() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resources, f.listErr
}

func (f *fakeRM) Open(string) (ports.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	return fakeConn{}, nil
}

func (f *fakeRM) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls++
	return nil
}

func (f *fakeRM) resets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resetCalls
}

type fakeSink struct {
	mu       sync.Mutex
	statuses []string
	controls []bool
}

func (f *fakeSink) Status(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, msg)
}

func (f *fakeSink) WaveformReady(*domain.Waveform) {}

func (f *fakeSink) ControlsEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, enabled)
}

func (f *fakeSink) statusCount(msg string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.statuses {
		if s == msg {
			n++
		}
	}
	return n
}

type fakeObs struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
}

func newFakeObs() *fakeObs {
	return &fakeObs{counters: map[string]float64{}, gauges: map[string]float64{}}
}

func (f *fakeObs) LogInfo(string, ...ports.Field)         {}
func (f *fakeObs) LogError(string, error, ...ports.Field) {}

func (f *fakeObs) IncCounter(name string, delta float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[name] += delta
}

func (f *fakeObs) SetGauge(name string, value float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gauges[name] = value
}

func (f *fakeObs) ObserveLatency(string, float64) {}

func (f *fakeObs) counter(name string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters[name]
}

func (f *fakeObs) gauge(name string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gauges[name]
}

func classifierFor(inst ports.Instrument, err error) Classifier {
	return func(ports.Conn) (ports.Instrument, error) {
		return inst, err
	}
}

func newTestSupervisor(rm *fakeRM, classify Classifier, sink *fakeSink, obs *fakeObs) *Supervisor {
	return New(&sync.Mutex{}, rm, classify, sink, obs, Options{
		FindInterval:     time.Millisecond,
		LivenessInterval: time.Millisecond,
	})
}

func TestRefreshConnects(t *testing.T) {
	rm := &fakeRM{resources: []string{"tcp://scope:5025"}}
	inst := &fakeInstrument{id: "TEKTRONIX TDS2024B Oscilloscope. Serial Number: C100.", trigState: ports.TriggerAuto}
	sink := &fakeSink{}
	obs := newFakeObs()
	sup := newTestSupervisor(rm, classifierFor(inst, nil), sink, obs)

	sup.Refresh()

	if got := sup.State(); got != domain.Connected {
		t.Fatalf("state = %v, want %v", got, domain.Connected)
	}
	if sup.Active() != inst {
		t.Fatal("active instrument not the classified one")
	}
	if sink.statusCount("Found "+inst.id) != 1 {
		t.Fatalf("missing Found status, got %v", sink.statuses)
	}
	if got := obs.gauge("scopeout_instruments_connected"); got != 1 {
		t.Fatalf("connected gauge = %v, want 1", got)
	}
}

func TestRefreshTimeoutStaysSearching(t *testing.T) {
	rm := &fakeRM{resources: []string{"tcp://scope:5025"}}
	sink := &fakeSink{}
	obs := newFakeObs()
	sup := newTestSupervisor(rm, classifierFor(nil, domain.ErrTimeout), sink, obs)

	sup.Refresh()

	if got := sup.State(); got != domain.Searching {
		t.Fatalf("state = %v, want %v", got, domain.Searching)
	}
	if rm.resets() != 0 {
		t.Fatal("timeout must not reset the resource manager")
	}
}

func TestRefreshConnectionLostResetsManager(t *testing.T) {
	rm := &fakeRM{resources: []string{"tcp://scope:5025"}, openErr: domain.ErrConnectionLost}
	sink := &fakeSink{}
	sup := newTestSupervisor(rm, classifierFor(nil, nil), sink, newFakeObs())

	sup.Refresh()

	if rm.resets() != 1 {
		t.Fatalf("resets = %d, want 1", rm.resets())
	}
	if got := sup.State(); got != domain.Searching {
		t.Fatalf("state = %v, want %v", got, domain.Searching)
	}
}

func TestRefreshClosesDisplacedInstruments(t *testing.T) {
	rm := &fakeRM{resources: []string{"tcp://scope:5025"}}
	var made []*fakeInstrument
	classify := func(ports.Conn) (ports.Instrument, error) {
		inst := &fakeInstrument{id: "scope", trigState: ports.TriggerAuto}
		made = append(made, inst)
		return inst, nil
	}
	sup := newTestSupervisor(rm, classify, &fakeSink{}, newFakeObs())

	sup.Refresh().Refresh()

	if len(made) != 2 {
		t.Fatalf("classified %d instruments, want 2", len(made))
	}
	if !made[0].closed {
		t.Fatal("displaced instrument was not closed")
	}
	if made[1].closed {
		t.Fatal("active instrument must stay open")
	}
	if sup.Active() != made[1] {
		t.Fatal("active instrument is not the latest classified one")
	}
}

func TestCheckLiveness(t *testing.T) {
	rm := &fakeRM{resources: []string{"tcp://scope:5025"}}
	inst := &fakeInstrument{id: "scope", trigState: ports.TriggerReady}
	sup := newTestSupervisor(rm, classifierFor(inst, nil), &fakeSink{}, newFakeObs())
	sup.Refresh()

	if !sup.CheckLiveness(0) {
		t.Fatal("healthy instrument reported dead")
	}

	inst.trigErr = domain.ErrConnectionLost
	if sup.CheckLiveness(0) {
		t.Fatal("failing instrument reported alive")
	}
	if sup.CheckLiveness(3) {
		t.Fatal("out-of-range index reported alive")
	}
}

func TestReportLivenessFailureIsIdempotent(t *testing.T) {
	rm := &fakeRM{resources: []string{"tcp://scope:5025"}}
	inst := &fakeInstrument{id: "scope", trigState: ports.TriggerAuto}
	sink := &fakeSink{}
	obs := newFakeObs()
	sup := newTestSupervisor(rm, classifierFor(inst, nil), sink, obs)
	sup.Refresh()

	transitions := obs.counter("scopeout_discovery_transitions_total")
	sup.ReportLivenessFailure()
	sup.ReportLivenessFailure()

	if got := sup.State(); got != domain.Searching {
		t.Fatalf("state = %v, want %v", got, domain.Searching)
	}
	if !inst.closed {
		t.Fatal("dropped instrument was not closed")
	}
	if n := sink.statusCount("Lost Connection to Oscilloscope(s)"); n != 1 {
		t.Fatalf("lost-connection status sent %d times, want 1", n)
	}
	if got := obs.counter("scopeout_discovery_transitions_total"); got != transitions+1 {
		t.Fatalf("transitions = %v, want %v", got, transitions+1)
	}
	if got := obs.gauge("scopeout_instruments_connected"); got != 0 {
		t.Fatalf("connected gauge = %v, want 0", got)
	}
}

func TestRunFindsInstrumentAndStops(t *testing.T) {
	rm := &fakeRM{}
	inst := &fakeInstrument{id: "scope", trigState: ports.TriggerAuto}
	sup := newTestSupervisor(rm, classifierFor(inst, nil), &fakeSink{}, newFakeObs())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	// Nothing on the bus yet, supervisor keeps searching.
	time.Sleep(5 * time.Millisecond)
	if got := sup.State(); got != domain.Searching {
		t.Fatalf("state = %v, want %v", got, domain.Searching)
	}

	rm.mu.Lock()
	rm.resources = []string{"tcp://scope:5025"}
	rm.mu.Unlock()

	deadline := time.After(time.Second)
	for sup.State() != domain.Connected {
		select {
		case <-deadline:
			t.Fatal("supervisor never connected")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestRunReturnsToSearchingOnDeadInstrument(t *testing.T) {
	rm := &fakeRM{resources: []string{"tcp://scope:5025"}}
	inst := &fakeInstrument{id: "scope", trigErr: domain.ErrConnectionLost}
	sup := newTestSupervisor(rm, classifierFor(inst, nil), &fakeSink{}, newFakeObs())
	sup.Refresh()
	if sup.State() != domain.Connected {
		t.Fatal("setup: expected connected supervisor")
	}

	// Stop the classifier from reconnecting so the transition sticks.
	rm.mu.Lock()
	rm.resources = nil
	rm.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	deadline := time.After(time.Second)
	for sup.State() != domain.Searching {
		select {
		case <-deadline:
			t.Fatal("supervisor never fell back to searching")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done
}
