package scpi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SeanMcGrath/ScopeOut/internal/domain"
)

// CaptureWaveform performs one full capture cycle: read the active data
// channel, fetch and parse the waveform preamble, then fetch and scale
// the curve data. A preamble without curve parameters means the channel
// is inactive; the waveform is returned with Error set and no samples.
func (s *scope) CaptureWaveform() (*domain.Waveform, error) {
	channel, err := s.Query(s.cmds.dataSourceQuery)
	if err != nil {
		return nil, err
	}

	w := domain.NewWaveform(strings.TrimSpace(channel))

	preamble, err := s.Query(s.cmds.preamble)
	if err != nil {
		return nil, err
	}
	if err := parsePreamble(w, preamble); err != nil {
		return nil, err
	}
	if w.Error != "" {
		return w, nil
	}

	raw, err := s.Query(s.cmds.curve)
	if err != nil {
		return nil, err
	}
	if w.Y, err = parseCurve(raw, w); err != nil {
		return nil, err
	}
	return w, nil
}

// parsePreamble fills the digitizer descriptor from the semicolon-
// separated WFMP? response. A response with only the leading five
// fields is how these scopes report an inactive channel.
func parsePreamble(w *domain.Waveform, preamble string) error {
	parts := strings.Split(preamble, ";")
	if len(parts) < 5 {
		return fmt.Errorf("malformed waveform preamble %q", preamble)
	}

	var err error
	if w.DataWidth, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return fmt.Errorf("preamble data width: %w", err)
	}
	if w.BitsPerPoint, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return fmt.Errorf("preamble bits per point: %w", err)
	}
	w.Encoding = strings.TrimSpace(parts[2])
	w.BinaryFormat = strings.TrimSpace(parts[3])
	w.SignificantBit = strings.TrimSpace(parts[4])

	if len(parts) <= 5 {
		w.Error = w.Channel + " is not active. Please select an active channel."
		return nil
	}
	if len(parts) < 16 {
		return fmt.Errorf("short waveform preamble: %d fields", len(parts))
	}

	if w.NumberOfPoints, err = strconv.Atoi(strings.TrimSpace(parts[5])); err != nil {
		return fmt.Errorf("preamble point count: %w", err)
	}
	w.PointFormat = strings.Trim(strings.TrimSpace(parts[7]), `"`)
	if w.XIncrement, err = parseFloat(parts[8]); err != nil {
		return fmt.Errorf("preamble x increment: %w", err)
	}
	if w.XOffset, err = parseFloat(parts[9]); err != nil {
		return fmt.Errorf("preamble x offset: %w", err)
	}
	if w.XZero, err = parseFloat(parts[10]); err != nil {
		return fmt.Errorf("preamble x zero: %w", err)
	}
	w.XUnit = strings.Trim(strings.TrimSpace(parts[11]), `"`)
	if w.XUnit == "s" {
		w.XUnit = "Seconds"
	}
	if w.YMultiplier, err = parseFloat(parts[12]); err != nil {
		return fmt.Errorf("preamble y multiplier: %w", err)
	}
	if w.YZero, err = parseFloat(parts[13]); err != nil {
		return fmt.Errorf("preamble y zero: %w", err)
	}
	if w.YOffset, err = parseFloat(parts[14]); err != nil {
		return fmt.Errorf("preamble y offset: %w", err)
	}
	w.YUnit = strings.Trim(strings.TrimSpace(parts[15]), `"`)
	return nil
}

// parseCurve converts the comma-separated CURV? digitizer levels into
// volts: y = yZero + yMultiplier * (raw - yOffset).
func parseCurve(raw string, w *domain.Waveform) ([]float64, error) {
	fields := strings.Split(raw, ",")
	y := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("curve data: %w", err)
		}
		y = append(y, w.YZero+w.YMultiplier*(v-w.YOffset))
	}
	return y, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
