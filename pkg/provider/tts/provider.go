// Package tts defines the Provider interface for text-to-speech backends.
//
// A provider turns one reply into one complete WAV file. Replies are short
// (a sentence or two), so there is no streaming contract: the renderer writes
// the file, plays it and removes it.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyText is returned by providers asked to synthesize blank text.
var ErrEmptyText = errors.New("tts: text must not be empty")

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize returns a RIFF/WAVE file speaking text.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// CheckText returns ErrEmptyText when text is blank after trimming.
func CheckText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return nil
}
