// Package vad defines the Engine interface for voice activity detection.
//
// An engine classifies single PCM frames as speech or silence. Each session
// keeps its own state so that independent streams never share detection
// history. ProcessFrame is synchronous and must not block: the edge capture
// loop calls it once per frame between blocking device reads.
//
// Smoothing across frames (hangover, pre-roll) belongs to the caller; engines
// report what each frame looks like, plus the edge events derived from the
// previous frame.
package vad

import (
	"errors"
	"fmt"
)

// Config holds the parameters of a VAD session.
type Config struct {
	// SampleRate is the PCM sample rate in Hz.
	SampleRate int

	// FrameSizeMs is the duration of each frame passed to ProcessFrame.
	// Engines reject frames of any other size.
	FrameSizeMs int

	// SpeechThreshold is the probability at or above which a frame counts as
	// speech. Range [0, 1]. Typical: 0.5.
	SpeechThreshold float64
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("vad: sample rate must be positive, got %d", c.SampleRate))
	}
	if c.FrameSizeMs <= 0 {
		errs = append(errs, fmt.Errorf("vad: frame size must be positive, got %d ms", c.FrameSizeMs))
	}
	if c.SpeechThreshold < 0 || c.SpeechThreshold > 1 {
		errs = append(errs, fmt.Errorf("vad: speech threshold %v outside [0, 1]", c.SpeechThreshold))
	}
	return errors.Join(errs...)
}

// FrameBytes returns the byte length of one 16-bit mono frame.
func (c Config) FrameBytes() int {
	return c.SampleRate * c.FrameSizeMs / 1000 * 2
}

// EventType enumerates per-frame detection results.
type EventType int

const (
	// SpeechStart marks the first speech frame after silence.
	SpeechStart EventType = iota

	// SpeechContinue marks a speech frame following another speech frame.
	SpeechContinue

	// SpeechEnd marks the first silence frame after speech.
	SpeechEnd

	// Silence marks a silence frame following another silence frame.
	Silence
)

// Event is the detection result for one frame.
type Event struct {
	Type EventType

	// Probability is the speech score in [0, 1].
	Probability float64
}

// IsSpeech reports whether the frame itself was classified as speech.
func (e Event) IsSpeech() bool {
	return e.Type == SpeechStart || e.Type == SpeechContinue
}

// SessionHandle is one live detection session. It is not safe for concurrent
// use.
type SessionHandle interface {
	// ProcessFrame classifies one frame of raw little-endian PCM.
	ProcessFrame(frame []byte) (Event, error)

	// Reset clears detection state without closing the session.
	Reset()

	// Close releases the session. Calling Close more than once is safe.
	Close() error
}

// Engine creates VAD sessions. Implementations must allow concurrent
// NewSession calls.
type Engine interface {
	NewSession(cfg Config) (SessionHandle, error)
}
