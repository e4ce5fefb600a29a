// Package store persists completed waveforms to Postgres/TimescaleDB.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/SeanMcGrath/ScopeOut/internal/domain"
	"github.com/SeanMcGrath/ScopeOut/internal/ports"
)

// sampleBatchRows keeps one bulk insert under the Postgres placeholder
// limit (65535) at four parameters per row.
const sampleBatchRows = 10000

type PgWaveformStore struct {
	db          *sql.DB
	waveTable   string
	sampleTable string
}

func NewPgWaveformStore(db *sql.DB, waveTable, sampleTable string) *PgWaveformStore {
	return &PgWaveformStore{db: db, waveTable: waveTable, sampleTable: sampleTable}
}

func (s *PgWaveformStore) Name() string { return "postgres" }

// SaveWaveform writes the waveform row and its bulk (x, y) sample rows
// in one transaction. Any failure rolls the whole waveform back; the
// engine stays live.
func (s *PgWaveformStore) SaveWaveform(w *domain.Waveform) error {
	if w == nil {
		return fmt.Errorf("waveform is nil")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin waveform tx: %w", err)
	}

	if err := s.insertWaveform(tx, w); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert waveform %s: %w", w.ID, err)
	}
	if err := s.insertSamples(tx, w); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert samples for %s: %w", w.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit waveform %s: %w", w.ID, err)
	}
	return nil
}

func (s *PgWaveformStore) insertWaveform(tx *sql.Tx, w *domain.Waveform) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, channel, capture_time, error, peak_mode, peak_start, peak_end, integral, data_width, bits_per_point, encoding, binary_format, significant_bit, number_of_points, point_format, x_increment, x_offset, x_zero, x_unit, y_multiplier, y_zero, y_offset, y_unit) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23) ON CONFLICT (id) DO NOTHING`, s.waveTable)

	_, err := tx.Exec(query,
		w.ID, w.Channel, w.CaptureTime, w.Error,
		w.PeakMode, w.PeakStart, w.PeakEnd, w.Integral,
		w.DataWidth, w.BitsPerPoint, w.Encoding, w.BinaryFormat,
		w.SignificantBit, w.NumberOfPoints, w.PointFormat,
		w.XIncrement, w.XOffset, w.XZero, w.XUnit,
		w.YMultiplier, w.YZero, w.YOffset, w.YUnit,
	)
	return err
}

// insertSamples bulk-inserts (x, y) pairs tagged by waveform id,
// batched to stay inside the placeholder limit. Errored captures carry
// no samples and skip this step.
func (s *PgWaveformStore) insertSamples(tx *sql.Tx, w *domain.Waveform) error {
	x := w.XSamples()
	n := len(w.Y)
	if n > len(x) {
		n = len(x)
	}

	for batchStart := 0; batchStart < n; batchStart += sampleBatchRows {
		batchEnd := batchStart + sampleBatchRows
		if batchEnd > n {
			batchEnd = n
		}

		var b strings.Builder
		b.WriteString("INSERT INTO ")
		b.WriteString(s.sampleTable)
		b.WriteString(" (wave_id, idx, x, y) VALUES ")

		args := make([]any, 0, (batchEnd-batchStart)*4)
		for i := batchStart; i < batchEnd; i++ {
			if i > batchStart {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "($%d,$%d,$%d,$%d)",
				len(args)+1, len(args)+2, len(args)+3, len(args)+4)
			args = append(args, w.ID, i, x[i], w.Y[i])
		}

		if _, err := tx.Exec(b.String(), args...); err != nil {
			return err
		}
	}
	return nil
}

var _ ports.WaveformStore = (*PgWaveformStore)(nil)
