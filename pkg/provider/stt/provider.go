// Package stt defines the Provider interface for speech-to-text backends.
//
// The brain service opens one session per accepted audio stream, feeds every
// chunk in arrival order with SendAudio and calls Finalize exactly once after
// the stream half-closes. Finalize yields the session's single transcript.
// Backends may accumulate audio and transcribe in one batch (whisper) or
// transcribe incrementally while audio arrives (deepgram); callers cannot tell
// the difference.
//
// An empty transcript is a valid result and means that nothing intelligible
// was heard.
package stt

import (
	"context"
	"errors"
)

// ErrSessionClosed is returned by SendAudio and Finalize after Close or after
// a previous Finalize.
var ErrSessionClosed = errors.New("stt: session closed")

// StreamConfig describes the audio of a new session.
type StreamConfig struct {
	// SampleRate is the PCM sample rate in Hz. Zero selects the provider
	// default (16000).
	SampleRate int

	// Language is a BCP-47 tag such as "en". Empty selects the provider
	// default.
	Language string
}

// SessionHandle is one open transcription session. SendAudio and Finalize
// are called from a single goroutine; Close may be called from any goroutine
// and more than once.
type SessionHandle interface {
	// SendAudio delivers one chunk of 16-bit little-endian mono PCM.
	SendAudio(chunk []byte) error

	// Finalize flushes pending audio and returns the transcript. It may be
	// called once; later calls return ErrSessionClosed.
	Finalize(ctx context.Context) (string, error)

	// Close releases the session without producing a transcript.
	Close() error
}

// Provider opens transcription sessions. Implementations must be safe for
// concurrent use.
type Provider interface {
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}

// Transcriber transcribes one complete PCM buffer. The wake-word spotter uses
// it to score short windows of audio.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}
