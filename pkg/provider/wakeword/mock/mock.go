// Package mock provides a scripted wakeword.Spotter.
package mock

import (
	"sync"

	"github.com/MrWong99/voxbridge/pkg/provider/wakeword"
)

// Spotter triggers when Trigger returns true for a frame. It counts Start and
// End calls so tests can verify decoder resets between attempts, and reports
// Lag as the trigger's delay.
type Spotter struct {
	mu sync.Mutex

	// Trigger decides per frame. When nil the spotter never fires.
	Trigger func(frame []byte) bool

	// Err, if non-nil, is returned by every Process call.
	Err error

	// Lag is reported by Behind: how many frames before the triggering
	// frame the keyphrase ended.
	Lag int

	Starts    int
	Ends      int
	Processed int

	active bool
}

// Start records the call.
func (s *Spotter) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Starts++
	s.active = true
	return nil
}

// Process counts the frame and applies Trigger. Frames outside a
// Start/End bracket never trigger.
func (s *Spotter) Process(frame []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Processed++
	if s.Err != nil {
		return false, s.Err
	}
	if !s.active || s.Trigger == nil {
		return false, nil
	}
	return s.Trigger(frame), nil
}

// End records the call.
func (s *Spotter) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Ends++
	s.active = false
	return nil
}

// Behind returns Lag.
func (s *Spotter) Behind() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Lag
}

// Counts returns Starts, Ends and Processed.
func (s *Spotter) Counts() (starts, ends, processed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Starts, s.Ends, s.Processed
}

var (
	_ wakeword.Spotter = (*Spotter)(nil)
	_ wakeword.Lagger  = (*Spotter)(nil)
)
