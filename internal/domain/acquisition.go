package domain

// DiscoveryState describes the supervisor's connection state machine.
type DiscoveryState int

const (
	// Searching means no usable instrument has been found yet.
	Searching DiscoveryState = iota
	// Connected means at least one instrument answered and the first
	// classified one is active.
	Connected
)

func (s DiscoveryState) String() string {
	switch s {
	case Connected:
		return "connected"
	default:
		return "searching"
	}
}

// AcquisitionMode selects how a capture request is executed.
type AcquisitionMode int

const (
	// Immediate captures one waveform as soon as the instrument is free.
	Immediate AcquisitionMode = iota
	// OnTrigger polls trigger status and captures when the scope fires.
	OnTrigger
	// Continuous chains OnTrigger cycles until stopped.
	Continuous
)

func (m AcquisitionMode) String() string {
	switch m {
	case OnTrigger:
		return "on-trigger"
	case Continuous:
		return "continuous"
	default:
		return "immediate"
	}
}

// Channel selector values understood by AcquisitionRequest. Numeric
// channels are passed through as "1", "2", ...
const (
	AllChannels = "all"
	MathChannel = "math"
)

// AcquisitionRequest is a transient description of one user capture
// action. It is created per request and consumed by the coordinator.
type AcquisitionRequest struct {
	Mode    AcquisitionMode
	Channel string
}
