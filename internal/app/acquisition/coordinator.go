// Package acquisition coordinates waveform capture against the active
// instrument: immediate grabs, trigger-gated grabs, and continuous
// runs that re-arm themselves after every capture.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/SeanMcGrath/ScopeOut/internal/app/discovery"
	"github.com/SeanMcGrath/ScopeOut/internal/domain"
	"github.com/SeanMcGrath/ScopeOut/internal/peak"
	"github.com/SeanMcGrath/ScopeOut/internal/ports"
)

// Options carries the coordinator's pacing and deadline knobs.
type Options struct {
	// PollInterval paces trigger-status polling.
	PollInterval time.Duration
	// TriggerDeadline bounds how long a trigger-gated capture waits
	// for the instrument to fire. Zero waits forever.
	TriggerDeadline time.Duration
	// ChannelSetTimeout bounds the wait for a background channel
	// switch during an all-channels sweep.
	ChannelSetTimeout time.Duration
}

// Coordinator executes acquisition requests. Exactly one request runs
// at a time; instrument I/O is serialized through the same mutex the
// discovery supervisor probes under.
type Coordinator struct {
	lock   *sync.Mutex
	sup    *discovery.Supervisor
	events ports.EventSink
	obs    ports.Observability
	params peak.Params
	opts   Options

	// waveAcquired pulses once per completed trigger cycle so a
	// continuous run knows when to arm the next one.
	waveAcquired chan struct{}

	mu           sync.Mutex
	busy         bool
	cancel       context.CancelFunc
	multiChannel bool
}

func New(lock *sync.Mutex, sup *discovery.Supervisor, events ports.EventSink, obs ports.Observability, params peak.Params, opts Options) *Coordinator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Millisecond
	}
	if opts.ChannelSetTimeout <= 0 {
		opts.ChannelSetTimeout = 10 * time.Second
	}
	return &Coordinator{
		lock:         lock,
		sup:          sup,
		events:       events,
		obs:          obs,
		params:       params,
		opts:         opts,
		waveAcquired: make(chan struct{}, 1),
	}
}

// Acquire runs one acquisition request to completion. A fresh
// cancellation session is opened for the run, so a stop requested
// during a previous run never bleeds into this one. It returns an
// error only for malformed requests or when a run is already active;
// capture failures are reported through the event sink.
func (c *Coordinator) Acquire(ctx context.Context, req domain.AcquisitionRequest) error {
	sessCtx, err := c.beginSession(ctx)
	if err != nil {
		return err
	}
	defer c.endSession()

	c.events.ControlsEnabled(false)

	switch req.Mode {
	case domain.Immediate:
		if req.Channel == domain.AllChannels || c.isMultiChannel() {
			c.acquireAllChannels(sessCtx)
			return nil
		}
		if !c.selectRequestedChannel(sessCtx, req.Channel) {
			c.events.ControlsEnabled(true)
			return nil
		}
		c.acquireImmediate(sessCtx)
		c.events.ControlsEnabled(true)
	case domain.OnTrigger:
		if !c.selectRequestedChannel(sessCtx, req.Channel) {
			c.events.ControlsEnabled(true)
			return nil
		}
		c.events.Status("Waiting for trigger...")
		c.acquireOnTrigger(sessCtx)
		c.events.ControlsEnabled(true)
	case domain.Continuous:
		if !c.selectRequestedChannel(sessCtx, req.Channel) {
			c.events.ControlsEnabled(true)
			return nil
		}
		c.acquireContinuous(sessCtx)
	default:
		c.events.ControlsEnabled(true)
		return fmt.Errorf("unknown acquisition mode %d", int(req.Mode))
	}
	return nil
}

// StopAcquisition cancels the in-flight run, if any. The run winds
// down cooperatively: a capture already holding the instrument mutex
// finishes first.
func (c *Coordinator) StopAcquisition() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// SetChannel switches the instrument's data channel in the background
// and returns a one-shot channel carrying the outcome. The selector is
// a channel number, "math", or "all"; "all" flips the coordinator into
// multi-channel mode without touching the instrument.
func (c *Coordinator) SetChannel(channel string) <-chan bool {
	done := make(chan bool, 1)

	if channel == domain.AllChannels {
		c.setMultiChannel(true)
		c.events.Status("Selected all data channels")
		done <- true
		return done
	}
	c.setMultiChannel(false)

	go func() {
		defer close(done)
		inst := c.sup.Active()
		if inst == nil {
			c.events.Status("No instrument connected")
			done <- false
			return
		}
		c.lock.Lock()
		ok, err := inst.SetDataChannel(channel)
		c.lock.Unlock()
		if err != nil || !ok {
			if err == nil {
				err = fmt.Errorf("instrument rejected channel %q", channel)
			}
			c.obs.LogError("set_data_channel_failed", err, ports.Field{Key: "channel", Value: channel})
			c.events.Status("Failed to set data channel " + channel)
			done <- false
			return
		}
		c.events.Status("Data channel set to " + channel)
		done <- true
	}()
	return done
}

// AutoSet asks the instrument to configure itself for the current
// signal.
func (c *Coordinator) AutoSet() error {
	inst := c.sup.Active()
	if inst == nil {
		return errors.New("no instrument connected")
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := inst.AutoSet(); err != nil {
		return fmt.Errorf("auto-set: %w", err)
	}
	c.events.Status("Instrument auto-set complete")
	return nil
}

func (c *Coordinator) acquireImmediate(ctx context.Context) {
	c.events.Status("Acquiring data...")
	wave, err := c.capture(ctx)
	if err != nil {
		c.reportAcquisitionError(err)
		return
	}
	c.processWave(wave)
}

// acquireAllChannels sweeps every numbered channel, switching the data
// source and grabbing one waveform per channel. Per-channel failures
// are reported and the sweep moves on.
func (c *Coordinator) acquireAllChannels(ctx context.Context) {
	defer c.events.ControlsEnabled(true)
	defer c.setMultiChannel(false)

	inst := c.sup.Active()
	if inst == nil {
		c.reportAcquisitionError(errors.New("no instrument connected"))
		return
	}

	c.events.Status("Acquiring data...")
	for ch := 1; ch <= inst.ChannelCount(); ch++ {
		channel := strconv.Itoa(ch)
		select {
		case ok := <-c.setNumberedChannel(channel):
			if !ok {
				c.reportAcquisitionError(fmt.Errorf("switching to channel %s failed", channel))
				continue
			}
		case <-time.After(c.opts.ChannelSetTimeout):
			c.reportAcquisitionError(fmt.Errorf("timed out switching to channel %s", channel))
			continue
		case <-ctx.Done():
			c.reportAcquisitionError(domain.ErrStopped)
			return
		}

		wave, err := c.capture(ctx)
		if err != nil {
			c.reportAcquisitionError(err)
			continue
		}
		c.processWave(wave)
	}
	c.events.Status("Acquired all active channels.")
}

// acquireOnTrigger holds the instrument mutex while polling trigger
// status, captures once the instrument reports a fired trigger, and
// pulses waveAcquired whichever way the cycle ends so a continuous
// run never stalls waiting for it.
func (c *Coordinator) acquireOnTrigger(ctx context.Context) {
	inst := c.sup.Active()
	if inst == nil {
		c.signalWaveAcquired()
		c.reportAcquisitionError(errors.New("no instrument connected"))
		return
	}

	var deadline <-chan time.Time
	if c.opts.TriggerDeadline > 0 {
		timer := time.NewTimer(c.opts.TriggerDeadline)
		defer timer.Stop()
		deadline = timer.C
	}

	c.lock.Lock()
	locked := true
	unlock := func() {
		if locked {
			locked = false
			c.lock.Unlock()
		}
	}
	defer unlock()

	fired := false
poll:
	for {
		if ctx.Err() != nil {
			break
		}
		state, err := inst.TriggerStatus()
		if err == nil && state == ports.TriggerFired {
			fired = true
			break
		}
		if err != nil && !errors.Is(err, domain.ErrTimeout) {
			c.signalWaveAcquired()
			unlock()
			c.reportAcquisitionError(err)
			return
		}
		select {
		case <-ctx.Done():
			break poll
		case <-deadline:
			c.signalWaveAcquired()
			unlock()
			c.reportAcquisitionError(fmt.Errorf("no trigger within %s", c.opts.TriggerDeadline))
			return
		case <-time.After(c.opts.PollInterval):
		}
	}

	if !fired {
		c.signalWaveAcquired()
		unlock()
		c.events.Status("Acquisition terminated")
		return
	}

	wave, err := c.captureHoldingLock(inst)
	c.signalWaveAcquired()
	unlock()
	if err != nil {
		c.reportAcquisitionError(err)
		return
	}
	c.processWave(wave)
}

// acquireContinuous re-arms a trigger-gated capture after each one
// completes until the run is stopped. The liveness probe is held for
// the duration so it cannot interleave with the tight capture loop.
func (c *Coordinator) acquireContinuous(ctx context.Context) {
	c.sup.PauseLiveness()
	c.events.Status("Acquiring Continuously...")
	c.signalWaveAcquired()

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
		case <-c.waveAcquired:
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.acquireOnTrigger(ctx)
		}()
	}
	wg.Wait()
	c.drainWaveAcquired()

	c.sup.ResumeLiveness()
	c.events.Status("Continuous Acquisition Halted.")
	c.events.ControlsEnabled(true)
}

// processWave runs the capture through the peak engine and emits it.
// Instrument-flagged captures are emitted untouched so downstream
// consumers still see them; the engine is skipped for those.
func (c *Coordinator) processWave(w *domain.Waveform) {
	defer c.events.WaveformReady(w)

	if w.Error != "" {
		c.obs.LogError("waveform_flagged_by_instrument", errors.New(w.Error), ports.Field{Key: "channel", Value: w.Channel})
		c.events.Status(w.Error)
		return
	}
	if err := peak.Apply(w, c.params); err != nil {
		c.obs.LogError("wave_processing_failed", err, ports.Field{Key: "channel", Value: w.Channel})
		c.events.Status("Error occurred during wave processing. Check log for details.")
		return
	}
	c.obs.IncCounter("scopeout_waveforms_acquired_total", 1)
	c.events.Status("Waveform acquired on " + w.Channel)
}

func (c *Coordinator) capture(ctx context.Context) (*domain.Waveform, error) {
	if ctx.Err() != nil {
		return nil, domain.ErrStopped
	}
	inst := c.sup.Active()
	if inst == nil {
		return nil, errors.New("no instrument connected")
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if ctx.Err() != nil {
		return nil, domain.ErrStopped
	}
	return c.captureHoldingLock(inst)
}

func (c *Coordinator) captureHoldingLock(inst ports.Instrument) (*domain.Waveform, error) {
	start := time.Now()
	w, err := inst.CaptureWaveform()
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, domain.ErrNoCapture
	}
	c.obs.ObserveLatency("scopeout_capture_latency_seconds", time.Since(start).Seconds())
	return w, nil
}

func (c *Coordinator) reportAcquisitionError(err error) {
	c.obs.IncCounter("scopeout_acquisition_errors_total", 1)
	c.obs.LogError("waveform_acquisition_failed", err)
	c.events.Status("Error on Waveform Acquisition")
}

// selectRequestedChannel applies a per-request channel selector before
// the run starts. An empty selector keeps whatever the instrument has.
func (c *Coordinator) selectRequestedChannel(ctx context.Context, channel string) bool {
	if channel == "" || channel == domain.AllChannels {
		return true
	}
	select {
	case ok := <-c.SetChannel(channel):
		return ok
	case <-time.After(c.opts.ChannelSetTimeout):
		c.reportAcquisitionError(fmt.Errorf("timed out switching to channel %s", channel))
		return false
	case <-ctx.Done():
		return false
	}
}

// setNumberedChannel bypasses the multi-channel latch so an
// all-channels sweep can step through sources without unlatching
// itself.
func (c *Coordinator) setNumberedChannel(channel string) <-chan bool {
	done := make(chan bool, 1)
	go func() {
		defer close(done)
		inst := c.sup.Active()
		if inst == nil {
			done <- false
			return
		}
		c.lock.Lock()
		ok, err := inst.SetDataChannel(channel)
		c.lock.Unlock()
		if err != nil || !ok {
			done <- false
			return
		}
		done <- true
	}()
	return done
}

func (c *Coordinator) signalWaveAcquired() {
	select {
	case c.waveAcquired <- struct{}{}:
	default:
	}
}

func (c *Coordinator) drainWaveAcquired() {
	select {
	case <-c.waveAcquired:
	default:
	}
}

func (c *Coordinator) beginSession(ctx context.Context) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return nil, errors.New("acquisition already in progress")
	}
	sessCtx, cancel := context.WithCancel(ctx)
	c.busy = true
	c.cancel = cancel
	return sessCtx, nil
}

func (c *Coordinator) endSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.busy = false
}

func (c *Coordinator) setMultiChannel(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.multiChannel = on
}

func (c *Coordinator) isMultiChannel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.multiChannel
}
