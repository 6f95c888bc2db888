// Package mock provides in-memory transport doubles.
//
// Dialer records every chunk of every stream it opened, and can fail the
// open, a specific Send or the receipt:
//
//	d := &mock.Dialer{SendErrAt: 3, SendErr: errReset}
//	...
//	streams := d.Streams()
//
// Chunks replays a fixed chunk list as a transport.ChunkReader.
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/MrWong99/voxbridge/internal/transport"
)

// Dialer is a mock implementation of transport.Dialer.
type Dialer struct {
	mu sync.Mutex

	// OpenErr, if non-nil, is returned by Open.
	OpenErr error

	// SendErr is returned by the Send call with index SendErrAt (0-based,
	// counted per stream). Ignored when nil.
	SendErr   error
	SendErrAt int

	// Receipt is returned by CloseAndRecv. Defaults to transport.StatusOK.
	Receipt string

	// RecvErr, if non-nil, is returned by CloseAndRecv.
	RecvErr error

	streams []*Stream
}

// Open returns a new recording Stream.
func (d *Dialer) Open(ctx context.Context) (transport.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	receipt := d.Receipt
	if receipt == "" {
		receipt = transport.StatusOK
	}
	s := &Stream{
		sendErr:   d.SendErr,
		sendErrAt: d.SendErrAt,
		receipt:   receipt,
		recvErr:   d.RecvErr,
	}
	d.streams = append(d.streams, s)
	return s, nil
}

// Streams returns every stream opened so far.
func (d *Dialer) Streams() []*Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Stream(nil), d.streams...)
}

var _ transport.Dialer = (*Dialer)(nil)

// Stream is a recording transport.Stream.
type Stream struct {
	mu sync.Mutex

	sendErr   error
	sendErrAt int
	receipt   string
	recvErr   error

	chunks  [][]byte
	sends   int
	closed  bool
	aborted bool
}

// Send records a copy of chunk.
func (s *Stream) Send(_ context.Context, chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.sends
	s.sends++
	if s.sendErr != nil && idx == s.sendErrAt {
		return s.sendErr
	}
	s.chunks = append(s.chunks, append([]byte(nil), chunk...))
	return nil
}

// CloseAndRecv marks the stream half-closed and returns the receipt.
func (s *Stream) CloseAndRecv(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.recvErr != nil {
		return "", s.recvErr
	}
	return s.receipt, nil
}

// Abort marks the stream aborted.
func (s *Stream) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
}

// Chunks returns the chunks received so far.
func (s *Stream) Chunks() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.chunks...)
}

// Closed reports whether CloseAndRecv was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Aborted reports whether Abort was called.
func (s *Stream) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

var _ transport.Stream = (*Stream)(nil)

// Chunks is a transport.ChunkReader over a fixed list. Err, if set, is
// returned instead of io.EOF once the list is exhausted.
type Chunks struct {
	mu    sync.Mutex
	List  [][]byte
	Err   error
	reads int
}

// Recv returns the next chunk or the terminal error.
func (c *Chunks) Recv(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reads < len(c.List) {
		b := c.List[c.reads]
		c.reads++
		return b, nil
	}
	c.reads++
	if c.Err != nil {
		return nil, c.Err
	}
	return nil, io.EOF
}

// Reads returns the number of Recv calls.
func (c *Chunks) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

var _ transport.ChunkReader = (*Chunks)(nil)
