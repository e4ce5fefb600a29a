package ports

import "github.com/SeanMcGrath/ScopeOut/internal/domain"

// TriggerState is the trigger status reported by an oscilloscope.
type TriggerState string

const (
	TriggerAuto  TriggerState = "AUTO"
	TriggerReady TriggerState = "READY"
	TriggerFired TriggerState = "TRIGGER"
	TriggerArmed TriggerState = "ARMED"
)

// Instrument is the capability contract every supported oscilloscope
// family implements. One concrete driver exists per family, selected
// at discovery time by identification-string matching.
type Instrument interface {
	// ID describes the instrument (make, model, serial number).
	ID() string

	// Write issues a raw command without reading a response.
	Write(cmd string) error

	// Query issues a command and returns the single-line response.
	Query(cmd string) (string, error)

	// ChannelCount reports the number of physical input channels.
	ChannelCount() int

	// TriggerStatus reads the current trigger state.
	TriggerStatus() (TriggerState, error)

	// SetDataChannel selects the channel read out by CaptureWaveform.
	// It returns false when the instrument rejects the channel.
	SetDataChannel(channel string) (bool, error)

	// CaptureWaveform performs one capture cycle on the active data
	// channel. A waveform with its Error field set is returned when the
	// channel is inactive; (nil, err) when communication fails.
	CaptureWaveform() (*domain.Waveform, error)

	// AutoSet runs the scope's automatic setup routine.
	AutoSet() error

	Close() error
}
