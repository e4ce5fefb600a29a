package scopeout

import (
	"github.com/SeanMcGrath/ScopeOut/internal/domain"
	"github.com/SeanMcGrath/ScopeOut/internal/peak"
	"github.com/SeanMcGrath/ScopeOut/internal/ports"
)

// Domain types surfaced to embedding callers.
type (
	Waveform           = domain.Waveform
	AcquisitionRequest = domain.AcquisitionRequest
	AcquisitionMode    = domain.AcquisitionMode
	DiscoveryState     = domain.DiscoveryState
	PeakWindow         = peak.Window
	PeakParams         = peak.Params
)

// Ports callers can replace through runtime options.
type (
	Instrument      = ports.Instrument
	Conn            = ports.Conn
	ResourceManager = ports.ResourceManager
	WaveformStore   = ports.WaveformStore
	EventSink       = ports.EventSink
	Observability   = ports.Observability
	Field           = ports.Field
	TriggerState    = ports.TriggerState
)

// Acquisition modes.
const (
	Immediate  = domain.Immediate
	OnTrigger  = domain.OnTrigger
	Continuous = domain.Continuous
)

// Channel selectors understood by acquisition requests.
const (
	AllChannels = domain.AllChannels
	MathChannel = domain.MathChannel
)

// Discovery states.
const (
	Searching = domain.Searching
	Connected = domain.Connected
)

// Trigger states reported by instrument drivers.
const (
	TriggerAuto  = ports.TriggerAuto
	TriggerReady = ports.TriggerReady
	TriggerFired = ports.TriggerFired
	TriggerArmed = ports.TriggerArmed
)

// NoPeak marks a waveform index the peak engine left unset.
const NoPeak = domain.NoPeak

// Sentinel errors surfaced by the engine.
var (
	ErrTimeout        = domain.ErrTimeout
	ErrConnectionLost = domain.ErrConnectionLost
	ErrNoCapture      = domain.ErrNoCapture
	ErrStopped        = domain.ErrStopped
)
