// Package rms implements a pure-Go energy VAD. A frame is speech when its RMS
// level reaches the configured level; the probability reported is the level
// scaled so that exactly the threshold maps to Config.SpeechThreshold.
package rms

import (
	"fmt"
	"sync"

	"github.com/MrWong99/voxbridge/pkg/audio"
	"github.com/MrWong99/voxbridge/pkg/provider/vad"
)

const defaultLevel = 500.0

// Option configures an Engine.
type Option func(*Engine)

// WithLevel sets the RMS level (16-bit sample units) that counts as speech.
// Default 500.
func WithLevel(level float64) Option {
	return func(e *Engine) { e.level = level }
}

// Engine is an energy-threshold vad.Engine.
type Engine struct {
	level float64
}

var _ vad.Engine = (*Engine)(nil)

// New returns an Engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{level: defaultLevel}
	for _, o := range opts {
		o(e)
	}
	if e.level <= 0 {
		return nil, fmt.Errorf("rms: level must be positive, got %v", e.level)
	}
	return e, nil
}

// NewSession validates cfg and returns a fresh session.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SpeechThreshold == 0 {
		cfg.SpeechThreshold = 0.5
	}
	return &session{level: e.level, cfg: cfg, frameBytes: cfg.FrameBytes()}, nil
}

type session struct {
	mu         sync.Mutex
	level      float64
	cfg        vad.Config
	frameBytes int
	inSpeech   bool
	closed     bool
}

func (s *session) ProcessFrame(frame []byte) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return vad.Event{}, fmt.Errorf("rms: session closed")
	}
	if len(frame) != s.frameBytes {
		return vad.Event{}, fmt.Errorf("rms: frame is %d bytes, want %d", len(frame), s.frameBytes)
	}

	prob := audio.RMS(frame) / s.level * s.cfg.SpeechThreshold
	if prob > 1 {
		prob = 1
	}
	speech := prob >= s.cfg.SpeechThreshold

	var typ vad.EventType
	switch {
	case speech && !s.inSpeech:
		typ = vad.SpeechStart
	case speech:
		typ = vad.SpeechContinue
	case s.inSpeech:
		typ = vad.SpeechEnd
	default:
		typ = vad.Silence
	}
	s.inSpeech = speech
	return vad.Event{Type: typ, Probability: prob}, nil
}

func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inSpeech = false
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
