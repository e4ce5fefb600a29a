package scopeout

import (
	base "github.com/SeanMcGrath/ScopeOut/pkg/scopeout"
)

// Re-exported errors for convenience.
var (
	ErrTimeout        = base.ErrTimeout
	ErrConnectionLost = base.ErrConnectionLost
	ErrNoCapture      = base.ErrNoCapture
	ErrStopped        = base.ErrStopped
)

// Type aliases so consumers can import github.com/SeanMcGrath/ScopeOut
// directly.
type (
	Config             = base.Config
	InstrumentConfig   = base.InstrumentConfig
	DiscoveryConfig    = base.DiscoveryConfig
	AcquisitionConfig  = base.AcquisitionConfig
	PeakConfig         = base.PeakConfig
	DatabaseConfig     = base.DatabaseConfig
	MetricsConfig      = base.MetricsConfig
	Engine             = base.Engine
	EngineOption       = base.EngineOption
	Waveform           = base.Waveform
	AcquisitionRequest = base.AcquisitionRequest
	AcquisitionMode    = base.AcquisitionMode
	DiscoveryState     = base.DiscoveryState
	PeakWindow         = base.PeakWindow
	PeakParams         = base.PeakParams
	Instrument         = base.Instrument
	Conn               = base.Conn
	ResourceManager    = base.ResourceManager
	WaveformStore      = base.WaveformStore
	EventSink          = base.EventSink
	Observability      = base.Observability
	Field              = base.Field
	TriggerState       = base.TriggerState
	Classifier         = base.Classifier
)

// Acquisition modes and channel selectors.
const (
	Immediate   = base.Immediate
	OnTrigger   = base.OnTrigger
	Continuous  = base.Continuous
	AllChannels = base.AllChannels
	MathChannel = base.MathChannel
	NoPeak      = base.NoPeak
)

// Discovery states.
const (
	Searching = base.Searching
	Connected = base.Connected
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Engine constructor and options.
func NewEngine(cfg *Config, opts ...EngineOption) (*Engine, error) {
	return base.NewEngine(cfg, opts...)
}

func WithResourceManager(rm ResourceManager) EngineOption {
	return base.WithResourceManager(rm)
}

func WithStore(s WaveformStore) EngineOption {
	return base.WithStore(s)
}

func WithObservability(obs Observability) EngineOption {
	return base.WithObservability(obs)
}

func WithClassifier(c Classifier) EngineOption {
	return base.WithClassifier(c)
}
