// Package mock provides a scripted audio.Source for tests.
//
// Source replays Frames in order, then returns EndErr (io.EOF by default).
// Errors can be injected at a specific read index to simulate device failures.
//
//	src := &mock.Source{Frames: frames, FailAt: map[int]error{3: fault.DeviceIO("read", errUnplugged)}}
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/MrWong99/voxbridge/pkg/audio"
)

// Source is a mock implementation of audio.Source.
type Source struct {
	mu sync.Mutex

	// Frames are returned one per ReadFrame call. Seq is assigned from the
	// slice index when zero.
	Frames []audio.Frame

	// FailAt maps a read index to an error returned instead of the frame at
	// that position. The frame is not consumed.
	FailAt map[int]error

	// EndErr is returned once Frames is exhausted. Defaults to io.EOF.
	EndErr error

	// BlockWhenDone makes ReadFrame wait for ctx cancellation once Frames is
	// exhausted instead of returning EndErr.
	BlockWhenDone bool

	reads  int
	pos    int
	closed bool
}

// ReadFrame returns the next scripted frame.
func (s *Source) ReadFrame(ctx context.Context) (audio.Frame, error) {
	s.mu.Lock()
	idx := s.reads
	s.reads++
	if err, ok := s.FailAt[idx]; ok {
		s.mu.Unlock()
		return audio.Frame{}, err
	}
	if s.pos >= len(s.Frames) {
		block := s.BlockWhenDone
		endErr := s.EndErr
		s.mu.Unlock()
		if block {
			<-ctx.Done()
			return audio.Frame{}, ctx.Err()
		}
		if endErr == nil {
			endErr = io.EOF
		}
		return audio.Frame{}, endErr
	}
	fr := s.Frames[s.pos]
	if fr.Seq == 0 {
		fr.Seq = uint64(s.pos)
	}
	s.pos++
	s.mu.Unlock()
	return fr, nil
}

// Close marks the source closed.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Reads returns the number of ReadFrame calls so far.
func (s *Source) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

var _ audio.Source = (*Source)(nil)
