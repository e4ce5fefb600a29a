package domain

import "errors"

// Communication and acquisition failure classes. Timeouts are treated
// as transient noise by the discovery loop; a lost connection forces a
// resource-manager reset and a return to Searching.
var (
	ErrTimeout        = errors.New("instrument i/o timeout")
	ErrConnectionLost = errors.New("instrument connection lost")
	ErrNoCapture      = errors.New("instrument returned no waveform")
	ErrStopped        = errors.New("acquisition stopped")
)
