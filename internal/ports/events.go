package ports

import "github.com/SeanMcGrath/ScopeOut/internal/domain"

// EventSink receives fire-and-forget notifications from the engine.
// The engine never mutates consumer state directly; status text and
// completed waveforms cross this boundary as messages.
type EventSink interface {
	// Status publishes a human-readable status line.
	Status(msg string)

	// WaveformReady publishes a completed waveform. The waveform is
	// read-only after this call.
	WaveformReady(w *domain.Waveform)

	// ControlsEnabled reports whether acquisition controls should be
	// re-enabled after a capture session finishes.
	ControlsEnabled(enabled bool)
}
