package notify

import (
	"testing"

	"github.com/SeanMcGrath/ScopeOut/internal/domain"
)

func TestChannelSinkDelivers(t *testing.T) {
	s := NewChannelSink(4)

	s.Status("Found scope")
	w := domain.NewWaveform("CH1")
	s.WaveformReady(w)
	s.ControlsEnabled(false)

	if got := <-s.StatusEvents(); got != "Found scope" {
		t.Fatalf("unexpected status %q", got)
	}
	if got := <-s.Waves(); got != w {
		t.Fatalf("unexpected waveform %v", got)
	}
	if got := <-s.Controls(); got {
		t.Fatalf("expected controls disabled")
	}
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	s := NewChannelSink(1)

	s.Status("one")
	s.Status("two") // dropped, no block

	if got := <-s.StatusEvents(); got != "one" {
		t.Fatalf("unexpected status %q", got)
	}
	select {
	case got := <-s.StatusEvents():
		t.Fatalf("expected overflow to be dropped, got %q", got)
	default:
	}
}

func TestChannelSinkClosedIgnoresEvents(t *testing.T) {
	s := NewChannelSink(1)
	s.Close()
	s.Close() // idempotent

	s.Status("late")
	select {
	case got := <-s.StatusEvents():
		t.Fatalf("expected no delivery after close, got %q", got)
	default:
	}
}

func TestChannelSinkClosedNeverDelivers(t *testing.T) {
	s := NewChannelSink(4)
	s.Close()

	// The closed guard must win every time, not just when the buffer
	// happens to be full.
	for i := 0; i < 1000; i++ {
		s.Status("late")
		s.WaveformReady(domain.NewWaveform("CH1"))
		s.ControlsEnabled(true)
	}

	delivered := 0
	for {
		select {
		case <-s.StatusEvents():
			delivered++
		case <-s.Waves():
			delivered++
		case <-s.Controls():
			delivered++
		default:
			if delivered != 0 {
				t.Fatalf("%d events delivered after close", delivered)
			}
			return
		}
	}
}
