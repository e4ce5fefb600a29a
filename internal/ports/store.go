package ports

import "github.com/SeanMcGrath/ScopeOut/internal/domain"

// WaveformStore persists completed waveforms together with their bulk
// (x, y) sample rows, tagged by waveform id. Implementations report
// failure via a recoverable rollback, never by crashing the engine.
type WaveformStore interface {
	SaveWaveform(w *domain.Waveform) error
	Name() string
}
