// Package mock provides test doubles for the vad package interfaces.
//
// Session classifies frames with a caller-supplied function or returns a
// fixed event, and records every frame it saw:
//
//	sess := &mock.Session{Classify: func(f []byte) bool { return f[0] == 1 }}
//	eng := &mock.Engine{Session: sess}
package mock

import (
	"sync"

	"github.com/MrWong99/voxbridge/pkg/provider/vad"
)

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is returned by NewSession. A default Session is used when nil.
	Session vad.SessionHandle

	// NewSessionErr, if non-nil, is returned by NewSession.
	NewSessionErr error

	// Configs records the Config of every NewSession call.
	Configs []vad.Config
}

// NewSession records cfg and returns Session, NewSessionErr.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Configs = append(e.Configs, cfg)
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

var _ vad.Engine = (*Engine)(nil)

// Session is a mock implementation of vad.SessionHandle.
type Session struct {
	mu sync.Mutex

	// Classify decides speech per frame. When nil, Event is returned as is.
	Classify func(frame []byte) bool

	// Event is returned when Classify is nil.
	Event vad.Event

	// Err, if non-nil, is returned by every ProcessFrame call.
	Err error

	// Frames records a copy of every processed frame.
	Frames [][]byte

	ResetCount int
	CloseCount int

	inSpeech bool
}

// ProcessFrame records the frame and classifies it.
func (s *Session) ProcessFrame(frame []byte) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Frames = append(s.Frames, append([]byte(nil), frame...))
	if s.Err != nil {
		return vad.Event{}, s.Err
	}
	if s.Classify == nil {
		return s.Event, nil
	}
	speech := s.Classify(frame)
	ev := vad.Event{Type: vad.Silence}
	switch {
	case speech && !s.inSpeech:
		ev = vad.Event{Type: vad.SpeechStart, Probability: 1}
	case speech:
		ev = vad.Event{Type: vad.SpeechContinue, Probability: 1}
	case s.inSpeech:
		ev = vad.Event{Type: vad.SpeechEnd}
	}
	s.inSpeech = speech
	return ev, nil
}

// Reset increments ResetCount.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCount++
	s.inSpeech = false
}

// Close increments CloseCount.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCount++
	return nil
}

var _ vad.SessionHandle = (*Session)(nil)
