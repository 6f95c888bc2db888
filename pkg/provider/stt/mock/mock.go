// Package mock provides test doubles for the stt package interfaces.
//
// Provider hands out a fresh Session per StartStream call. Each session
// buffers the audio it receives and answers Finalize with Transcript, or with
// the result of TranscribeFunc when set:
//
//	p := &mock.Provider{Transcript: "add two beakers to inventory"}
//	h, _ := p.StartStream(ctx, stt.StreamConfig{})
//	h.SendAudio(chunk)
//	text, _ := h.Finalize(ctx)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxbridge/pkg/provider/stt"
)

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Transcript is returned by Finalize when TranscribeFunc is nil.
	Transcript string

	// TranscribeFunc, if set, computes the transcript from the received audio.
	TranscribeFunc func(pcm []byte) (string, error)

	// StartStreamErr, if non-nil, is returned by StartStream.
	StartStreamErr error

	// FinalizeErr, if non-nil, is returned by every Finalize call.
	FinalizeErr error

	// Configs records the StreamConfig of every StartStream call.
	Configs []stt.StreamConfig

	// Sessions records every session handed out.
	Sessions []*Session
}

// StartStream records the call and returns a new Session.
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Configs = append(p.Configs, cfg)
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	s := &Session{transcript: p.Transcript, fn: p.TranscribeFunc, finalizeErr: p.FinalizeErr}
	p.Sessions = append(p.Sessions, s)
	return s, nil
}

// Transcribe implements stt.Transcriber with the same rules as Finalize.
func (p *Provider) Transcribe(_ context.Context, pcm []byte) (string, error) {
	p.mu.Lock()
	fn, text, err := p.TranscribeFunc, p.Transcript, p.FinalizeErr
	p.mu.Unlock()
	if err != nil {
		return "", err
	}
	if fn != nil {
		return fn(pcm)
	}
	return text, nil
}

// StartCount returns the number of StartStream calls.
func (p *Provider) StartCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Configs)
}

var (
	_ stt.Provider    = (*Provider)(nil)
	_ stt.Transcriber = (*Provider)(nil)
)

// Session is a mock implementation of stt.SessionHandle.
type Session struct {
	mu          sync.Mutex
	transcript  string
	fn          func([]byte) (string, error)
	finalizeErr error

	// Chunks holds a copy of every chunk received, in order.
	Chunks [][]byte

	finalized  bool
	CloseCount int
}

// SendAudio records the chunk.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized || s.CloseCount > 0 {
		return stt.ErrSessionClosed
	}
	s.Chunks = append(s.Chunks, append([]byte(nil), chunk...))
	return nil
}

// Finalize returns the configured transcript once.
func (s *Session) Finalize(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized || s.CloseCount > 0 {
		return "", stt.ErrSessionClosed
	}
	s.finalized = true
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.finalizeErr != nil {
		return "", s.finalizeErr
	}
	if s.fn != nil {
		var pcm []byte
		for _, c := range s.Chunks {
			pcm = append(pcm, c...)
		}
		return s.fn(pcm)
	}
	return s.transcript, nil
}

// Close increments CloseCount.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCount++
	return nil
}

// Audio returns the concatenation of all received chunks.
func (s *Session) Audio() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []byte
	for _, c := range s.Chunks {
		out = append(out, c...)
	}
	return out
}

var _ stt.SessionHandle = (*Session)(nil)
