package whisper

import (
	"context"
	"strings"
	"sync"

	"github.com/MrWong99/voxbridge/pkg/provider/stt"
)

// inferFunc transcribes a complete PCM buffer.
type inferFunc func(ctx context.Context, pcm []byte) (string, error)

// bufferedSession accumulates every chunk of a stream and transcribes the
// whole buffer once in Finalize. Audio past maxBytes is dropped; whisper
// models only attend to the first 30 s of input anyway.
type bufferedSession struct {
	mu       sync.Mutex
	buf      []byte
	maxBytes int
	done     bool
	infer    inferFunc
}

var _ stt.SessionHandle = (*bufferedSession)(nil)

func newBufferedSession(infer inferFunc, maxBytes int) *bufferedSession {
	return &bufferedSession{infer: infer, maxBytes: maxBytes}
}

func (s *bufferedSession) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return stt.ErrSessionClosed
	}
	room := s.maxBytes - len(s.buf)
	if s.maxBytes > 0 && room < len(chunk) {
		if room <= 0 {
			return nil
		}
		chunk = chunk[:room]
	}
	s.buf = append(s.buf, chunk...)
	return nil
}

// Finalize transcribes the buffer. A buffer with no audio yields "".
func (s *bufferedSession) Finalize(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return "", stt.ErrSessionClosed
	}
	s.done = true
	pcm := s.buf
	s.buf = nil
	s.mu.Unlock()

	if len(pcm) < 2 {
		return "", nil
	}
	text, err := s.infer(ctx, pcm)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *bufferedSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.buf = nil
	return nil
}
