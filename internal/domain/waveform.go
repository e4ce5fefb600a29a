package domain

import (
	"time"

	"github.com/google/uuid"
)

// NoPeak is the sentinel index meaning "no peak detected".
const NoPeak = -1

// Waveform is one captured trace from an oscilloscope data channel,
// together with the digitizer parameters needed to interpret it and the
// peak-detection results computed after capture.
//
// A Waveform is created by an instrument driver on capture, enriched
// exactly once by the peak detection engine, and is read-only for every
// consumer after it has been emitted.
type Waveform struct {
	ID          uuid.UUID `json:"id"`
	Channel     string    `json:"channel"`
	CaptureTime time.Time `json:"capture_time"`

	// Error is set when the capture could not produce sample data, e.g.
	// because the selected channel is inactive. When Error is non-empty
	// the sample slices are absent and the peak fields are untouched.
	Error string `json:"error,omitempty"`

	// Digitizer descriptor, parsed from the waveform preamble.
	DataWidth      int     `json:"data_width"`
	BitsPerPoint   int     `json:"bits_per_point"`
	Encoding       string  `json:"encoding"`
	BinaryFormat   string  `json:"binary_format"`
	SignificantBit string  `json:"significant_bit"`
	NumberOfPoints int     `json:"number_of_points"`
	PointFormat    string  `json:"point_format"`
	XIncrement     float64 `json:"x_increment"`
	XOffset        float64 `json:"x_offset"`
	XZero          float64 `json:"x_zero"`
	XUnit          string  `json:"x_unit"`
	YMultiplier    float64 `json:"y_multiplier"`
	YZero          float64 `json:"y_zero"`
	YOffset        float64 `json:"y_offset"`
	YUnit          string  `json:"y_unit"`

	// Y holds the scaled voltage samples.
	Y []float64 `json:"-"`

	// Peak detection outputs. PeakStart == NoPeak means no peak found.
	PeakMode  string  `json:"peak_mode,omitempty"`
	PeakStart int     `json:"peak_start"`
	PeakEnd   int     `json:"peak_end"`
	Integral  float64 `json:"integral"`

	x []float64
}

// NewWaveform returns an empty waveform for the given channel with the
// peak fields initialised to their sentinel values.
func NewWaveform(channel string) *Waveform {
	return &Waveform{
		ID:          uuid.New(),
		Channel:     channel,
		CaptureTime: time.Now().UTC(),
		PeakStart:   NoPeak,
		PeakEnd:     NoPeak,
	}
}

// XSamples returns the time axis matching Y: x[i] = i * XIncrement.
// The slice is derived from the digitizer descriptor on first use and
// cached; it is never mutated independently of NumberOfPoints.
func (w *Waveform) XSamples() []float64 {
	if w.x == nil && w.NumberOfPoints > 0 {
		w.x = make([]float64, w.NumberOfPoints)
		for i := range w.x {
			w.x[i] = float64(i) * w.XIncrement
		}
	}
	return w.x
}

// HasPeak reports whether peak detection located a peak window.
func (w *Waveform) HasPeak() bool {
	return w.PeakStart != NoPeak
}
