// Package transport defines the one-call-per-session audio stream between the
// edge and the brain.
//
// The edge opens a [Stream] lazily at the first emitted frame, sends one chunk
// per frame, then half-closes with CloseAndRecv and waits for the single
// terminal status message. There are no chunk-level acknowledgements. Any
// error aborts the call; callers never retry inside a session.
//
// The brain side receives chunks through a [ChunkReader] and answers with a
// [Handler]. Concrete bindings live in the grpcstream and wsstream
// subpackages.
package transport

import "context"

// StatusOK is the receipt message returned for every completed session.
const StatusOK = "Audio processed successfully."

// Stream is the client end of one session's call.
type Stream interface {
	// Send transmits one opaque PCM chunk.
	Send(ctx context.Context, chunk []byte) error

	// CloseAndRecv half-closes the call and waits for the terminal status.
	CloseAndRecv(ctx context.Context) (string, error)

	// Abort tears the call down without waiting for a receipt. It is safe to
	// call after CloseAndRecv or more than once.
	Abort()
}

// Dialer opens streams to the brain.
type Dialer interface {
	Open(ctx context.Context) (Stream, error)
}

// ChunkReader yields the chunks of one call in order and io.EOF after the
// client half-closed.
type ChunkReader interface {
	Recv(ctx context.Context) ([]byte, error)
}

// Handler consumes one accepted stream and returns its status message.
type Handler interface {
	HandleStream(ctx context.Context, chunks ChunkReader) (string, error)
}

// HandlerFunc adapts a function to [Handler].
type HandlerFunc func(ctx context.Context, chunks ChunkReader) (string, error)

// HandleStream calls f.
func (f HandlerFunc) HandleStream(ctx context.Context, chunks ChunkReader) (string, error) {
	return f(ctx, chunks)
}
