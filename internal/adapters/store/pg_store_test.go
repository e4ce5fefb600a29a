package store

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/SeanMcGrath/ScopeOut/internal/domain"
)

func testWaveform() *domain.Waveform {
	w := domain.NewWaveform("CH1")
	w.NumberOfPoints = 3
	w.XIncrement = 1e-9
	w.Y = []float64{0.5, 1.5, 0.5}
	w.PeakMode = "Smart"
	w.PeakStart = 0
	w.PeakEnd = 2
	w.Integral = 2e-9
	return w
}

func TestSaveWaveform(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	s := NewPgWaveformStore(db, "waveforms", "wave_data")
	w := testWaveform()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO waveforms")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO wave_data (wave_id, idx, x, y) VALUES ($1,$2,$3,$4),($5,$6,$7,$8),($9,$10,$11,$12)")).
		WillReturnResult(sqlmock.NewResult(1, 3))
	mock.ExpectCommit()

	if err := s.SaveWaveform(w); err != nil {
		t.Fatalf("save waveform: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveWaveformErroredCaptureSkipsSamples(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	s := NewPgWaveformStore(db, "waveforms", "wave_data")
	w := domain.NewWaveform("CH2")
	w.Error = "CH2 is not active. Please select an active channel."

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO waveforms")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := s.SaveWaveform(w); err != nil {
		t.Fatalf("save errored waveform: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveWaveformRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	s := NewPgWaveformStore(db, "waveforms", "wave_data")
	w := testWaveform()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO waveforms")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO wave_data")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if err := s.SaveWaveform(w); err == nil {
		t.Fatalf("expected save to fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStoreName(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	if got := NewPgWaveformStore(db, "waveforms", "wave_data").Name(); got != "postgres" {
		t.Fatalf("unexpected store name %q", got)
	}
}
