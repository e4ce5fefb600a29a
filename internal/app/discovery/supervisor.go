// Package discovery finds reachable oscilloscopes, keeps one of them
// active, and watches its liveness.
package discovery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SeanMcGrath/ScopeOut/internal/domain"
	"github.com/SeanMcGrath/ScopeOut/internal/ports"
)

// Classifier turns a freshly opened connection into a typed instrument
// driver, usually by *IDN? signature matching.
type Classifier func(conn ports.Conn) (ports.Instrument, error)

// Options carries the supervisor's timing knobs.
type Options struct {
	// FindInterval paces re-enumeration while searching.
	FindInterval time.Duration
	// LivenessInterval paces trigger-status probes while connected.
	LivenessInterval time.Duration
}

// Supervisor runs the SEARCHING ↔ CONNECTED state machine. All
// instrument I/O happens under the shared instrument mutex so probes
// never interleave with an in-flight acquisition.
type Supervisor struct {
	lock     *sync.Mutex
	rm       ports.ResourceManager
	classify Classifier
	events   ports.EventSink
	obs      ports.Observability
	opts     Options

	paused atomic.Bool

	mu     sync.Mutex
	state  domain.DiscoveryState
	scopes []ports.Instrument
}

func New(lock *sync.Mutex, rm ports.ResourceManager, classify Classifier, events ports.EventSink, obs ports.Observability, opts Options) *Supervisor {
	if opts.FindInterval <= 0 {
		opts.FindInterval = 100 * time.Millisecond
	}
	if opts.LivenessInterval <= 0 {
		opts.LivenessInterval = 5 * time.Second
	}
	return &Supervisor{
		lock:     lock,
		rm:       rm,
		classify: classify,
		events:   events,
		obs:      obs,
		opts:     opts,
		state:    domain.Searching,
	}
}

// Refresh re-enumerates reachable instruments and classifies each one.
// Instruments that fail to answer or classify are dropped without
// failing the sweep. It returns the supervisor for chaining.
func (s *Supervisor) Refresh() *Supervisor {
	resources, err := s.rm.ListResources()
	if err != nil {
		s.handleCommError("list resources", err)
		resources = nil
	}

	var scopes []ports.Instrument
	for _, addr := range resources {
		conn, err := s.rm.Open(addr)
		if err != nil {
			s.handleCommError("open "+addr, err)
			continue
		}
		inst, err := s.classify(conn)
		if err != nil {
			_ = conn.Close()
			s.handleCommError("classify "+addr, err)
			continue
		}
		s.obs.LogInfo("instrument_classified", ports.Field{Key: "id", Value: inst.ID()})
		scopes = append(scopes, inst)
	}

	s.setScopes(scopes)
	return s
}

// CheckLiveness probes the instrument at index with a trigger-status
// query. Any communication failure or empty status reads as dead.
func (s *Supervisor) CheckLiveness(index int) bool {
	s.mu.Lock()
	if index < 0 || index >= len(s.scopes) {
		s.mu.Unlock()
		return false
	}
	inst := s.scopes[index]
	s.mu.Unlock()

	state, err := inst.TriggerStatus()
	return err == nil && state != ""
}

// ReportLivenessFailure clears the instrument list and returns the
// supervisor to SEARCHING. Repeated calls are idempotent: only the
// first transition notifies and counts.
func (s *Supervisor) ReportLivenessFailure() {
	s.mu.Lock()
	if s.state == domain.Searching && len(s.scopes) == 0 {
		s.mu.Unlock()
		return
	}
	scopes := s.scopes
	s.scopes = nil
	s.state = domain.Searching
	s.mu.Unlock()

	for _, inst := range scopes {
		_ = inst.Close()
	}

	s.obs.SetGauge("scopeout_instruments_connected", 0)
	s.obs.IncCounter("scopeout_discovery_transitions_total", 1)
	s.obs.LogInfo("instrument_connection_lost")
	s.events.Status("Lost Connection to Oscilloscope(s)")
	s.events.ControlsEnabled(false)
}

// State reports the current discovery state.
func (s *Supervisor) State() domain.DiscoveryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active returns the active instrument, the first classified one, or
// nil while searching.
func (s *Supervisor) Active() ports.Instrument {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.scopes) == 0 {
		return nil
	}
	return s.scopes[0]
}

// Scopes lists the currently visible instruments in discovery order.
func (s *Supervisor) Scopes() []ports.Instrument {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.Instrument, len(s.scopes))
	copy(out, s.scopes)
	return out
}

// PauseLiveness suspends periodic probing; Continuous acquisition
// holds the timer while it owns the instrument.
func (s *Supervisor) PauseLiveness() { s.paused.Store(true) }

// ResumeLiveness re-arms the periodic probe.
func (s *Supervisor) ResumeLiveness() { s.paused.Store(false) }

// Run drives the state machine until the context is cancelled: search
// continuously until an instrument is found, then probe it on the
// liveness interval, falling back to searching when a probe fails.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if err := s.search(ctx); err != nil {
			return err
		}
		if err := s.watch(ctx); err != nil {
			return err
		}
	}
}

func (s *Supervisor) search(ctx context.Context) error {
	for s.State() != domain.Connected {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.lock.Lock()
		s.Refresh()
		s.lock.Unlock()
		if s.State() == domain.Connected {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.FindInterval):
		}
	}
	return nil
}

func (s *Supervisor) watch(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.LivenessInterval)
	defer ticker.Stop()

	for s.State() == domain.Connected {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.paused.Load() {
				continue
			}
			s.lock.Lock()
			alive := s.CheckLiveness(0)
			s.lock.Unlock()
			if !alive {
				s.ReportLivenessFailure()
			}
		}
	}
	return nil
}

func (s *Supervisor) setScopes(scopes []ports.Instrument) {
	s.mu.Lock()
	prev := s.state
	displaced := s.scopes
	s.scopes = scopes
	if len(scopes) > 0 {
		s.state = domain.Connected
	} else {
		s.state = domain.Searching
	}
	state := s.state
	s.mu.Unlock()

	// Every sweep opens fresh connections; drop the ones it replaced.
	for _, inst := range displaced {
		_ = inst.Close()
	}

	s.obs.SetGauge("scopeout_instruments_connected", float64(len(scopes)))
	if state != prev {
		s.obs.IncCounter("scopeout_discovery_transitions_total", 1)
		if state == domain.Connected {
			s.obs.LogInfo("instrument_connected", ports.Field{Key: "id", Value: scopes[0].ID()})
			s.events.Status("Found " + scopes[0].ID())
			s.events.ControlsEnabled(true)
		}
	}
}

// handleCommError applies the discovery failure policy: timeouts are
// transient noise, a lost connection rebuilds the resource-manager
// handle, anything else is logged and the instrument skipped.
func (s *Supervisor) handleCommError(op string, err error) {
	switch {
	case errors.Is(err, domain.ErrTimeout):
	case errors.Is(err, domain.ErrConnectionLost):
		if rerr := s.rm.Reset(); rerr != nil {
			s.obs.LogError("resource_manager_reset_failed", rerr)
		}
	default:
		s.obs.LogError("instrument_discovery_failed", err, ports.Field{Key: "op", Value: op})
	}
}
