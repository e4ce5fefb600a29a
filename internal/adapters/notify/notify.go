// Package notify exposes the engine's status and waveform-ready events
// as channels so UI layers and persistence consumers can subscribe
// without sharing memory with the engine.
package notify

import (
	"sync"

	"github.com/SeanMcGrath/ScopeOut/internal/domain"
	"github.com/SeanMcGrath/ScopeOut/internal/ports"
)

// ChannelSink buffers events and drops them when no consumer keeps up.
// Delivery is fire-and-forget; the engine never blocks on a slow
// subscriber.
type ChannelSink struct {
	status   chan string
	waves    chan *domain.Waveform
	controls chan bool
	closed   chan struct{}
	once     sync.Once
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSink{
		status:   make(chan string, buffer),
		waves:    make(chan *domain.Waveform, buffer),
		controls: make(chan bool, buffer),
		closed:   make(chan struct{}),
	}
}

func (s *ChannelSink) Status(msg string) {
	if s.isClosed() {
		return
	}
	select {
	case s.status <- msg:
	default:
	}
}

func (s *ChannelSink) WaveformReady(w *domain.Waveform) {
	if s.isClosed() {
		return
	}
	select {
	case s.waves <- w:
	default:
	}
}

func (s *ChannelSink) ControlsEnabled(enabled bool) {
	if s.isClosed() {
		return
	}
	select {
	case s.controls <- enabled:
	default:
	}
}

func (s *ChannelSink) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// StatusEvents is the subscriber side of the status stream.
func (s *ChannelSink) StatusEvents() <-chan string { return s.status }

// Waves is the subscriber side of the waveform-ready stream.
func (s *ChannelSink) Waves() <-chan *domain.Waveform { return s.waves }

// Controls reports acquisition-control enable/disable transitions.
func (s *ChannelSink) Controls() <-chan bool { return s.controls }

// Close stops accepting events. Pending buffered events stay readable.
func (s *ChannelSink) Close() {
	s.once.Do(func() { close(s.closed) })
}

var _ ports.EventSink = (*ChannelSink)(nil)
