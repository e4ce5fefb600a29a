// Package peak locates the signal peak within a captured waveform and
// integrates it. Three detection strategies are provided; all of them
// operate on the raw y-sample slice and the capture's x-increment.
package peak

import (
	"fmt"
	"math"
	"strings"

	"github.com/SeanMcGrath/ScopeOut/internal/domain"
)

const (
	// stride is the sample distance between window steps.
	stride = 50

	// startAmpFraction is the minimum magnitude, relative to the peak
	// absolute amplitude, a sample must have to count toward a start.
	startAmpFraction = 0.05

	// endAmpFraction is the magnitude, relative to the peak absolute
	// amplitude, below which a sample counts toward a confirmed end.
	endAmpFraction = 0.20

	startConsecutive = 2
	endConsecutive   = 4

	// scanMargin keeps the widest window lookahead inside the buffer.
	scanMargin = 5 * stride
)

// Window is a half-open [Start, End) index range around a peak.
// Start == domain.NoPeak marks a failed detection.
type Window struct {
	Start int
	End   int
}

// Params selects a detection strategy by name and carries its tuning.
type Params struct {
	Mode string // Smart, Fixed or Hybrid

	StartThreshold float64 // t1: relative step increase opening a peak
	EndThreshold   float64 // t2: relative step change closing a peak
	StartTime      float64 // Fixed: window start on the x axis, seconds
	Width          float64 // Fixed/Hybrid: window width, seconds
}

// DetectSmart scans for a peak start and end analytically. The start is
// the first index where two consecutive window steps each rise by more
// than t1 relative to a sample above the start amplitude floor. The end
// is the first index past the start where four consecutive steps stay
// below the end amplitude ceiling with relative change under t2; if
// stability is never confirmed the end falls back to the last sample.
func DetectSmart(y []float64, t1, t2 float64) (Window, bool) {
	start, ok := smartStart(y, t1)
	if !ok {
		return Window{Start: domain.NoPeak, End: domain.NoPeak}, false
	}

	yMax := maxAbs(y)
	end := len(y) - 1
	for i := start; i < len(y)-scanMargin; i++ {
		within := 0
		for j := 1; j <= endConsecutive; j++ {
			prior := y[i+stride*(j-1)]
			// A zero sample aborts the count so the relative change
			// below never divides by zero.
			if prior == 0 || math.Abs(prior) >= endAmpFraction*yMax {
				break
			}
			if math.Abs((y[i+stride*j]-prior)/prior) >= t2 {
				break
			}
			within++
		}
		if within == endConsecutive {
			end = i
			break
		}
	}

	return Window{Start: start, End: end}, true
}

// DetectFixed places the window from configuration alone: the start is
// the first x sample at or past startTime, the end is the start plus
// the configured width converted to points.
func DetectFixed(x []float64, xIncrement, startTime, width float64) Window {
	start := 0
	for start < len(x) && x[start] < startTime {
		start++
	}
	return Window{Start: start, End: start + widthPoints(width, xIncrement)}
}

// DetectHybrid finds the start with the Smart rule and closes the
// window a fixed width later. When no start is found the window is
// anchored at index zero with the same width.
func DetectHybrid(y []float64, xIncrement, t1, width float64) Window {
	w := widthPoints(width, xIncrement)
	if start, ok := smartStart(y, t1); ok {
		return Window{Start: start, End: start + w}
	}
	return Window{Start: 0, End: w}
}

// Integrate computes the left-rectangle sum of y[i]*xIncrement over the
// window. The rectangle rule, not a trapezoid, is deliberate: results
// must stay bit-compatible across releases. It returns 0 when no peak
// was found or the window does not fit the sample array.
func Integrate(y []float64, xIncrement float64, w Window) float64 {
	if w.Start < 0 {
		return 0
	}
	end := w.End
	if end < 0 {
		end = len(y)
	}
	if w.Start > len(y) || end > len(y) {
		return 0
	}

	var sum float64
	for i := w.Start; i < end; i++ {
		sum += y[i] * xIncrement
	}
	return sum
}

// Apply runs the detection selected by p on the waveform and stores the
// window and integral in its peak fields. Any panic raised by a
// malformed sample array is caught and the peak fields are reset to
// their sentinel state; the caller still owns a usable waveform.
func Apply(w *domain.Waveform, p Params) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.PeakStart = domain.NoPeak
			w.PeakEnd = domain.NoPeak
			w.Integral = 0
			err = fmt.Errorf("peak detection %s: %v", p.Mode, r)
		}
	}()

	var win Window
	switch {
	case strings.Contains(p.Mode, "Smart"):
		win, _ = DetectSmart(w.Y, p.StartThreshold, p.EndThreshold)
	case strings.Contains(p.Mode, "Fixed"):
		win = DetectFixed(w.XSamples(), w.XIncrement, p.StartTime, p.Width)
	case strings.Contains(p.Mode, "Hybrid"):
		win = DetectHybrid(w.Y, w.XIncrement, p.StartThreshold, p.Width)
	default:
		return fmt.Errorf("unknown peak detection mode %q", p.Mode)
	}

	w.PeakMode = p.Mode
	w.PeakStart = win.Start
	w.PeakEnd = win.End
	w.Integral = Integrate(w.Y, w.XIncrement, win)
	return nil
}

func smartStart(y []float64, t1 float64) (int, bool) {
	yMax := maxAbs(y)
	for i := 0; i < len(y)-scanMargin; i++ {
		within := 0
		for j := 1; j <= startConsecutive; j++ {
			prior := y[i+stride*(j-1)]
			if prior == 0 || math.Abs(prior) <= startAmpFraction*yMax {
				break
			}
			if math.Abs((y[i+stride*j]-prior)/prior) <= t1 {
				break
			}
			within++
		}
		if within == startConsecutive {
			return i, true
		}
	}
	return domain.NoPeak, false
}

func widthPoints(width, xIncrement float64) int {
	if xIncrement <= 0 {
		return 0
	}
	return int(width / xIncrement)
}

func maxAbs(y []float64) float64 {
	var m float64
	for _, v := range y {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}
