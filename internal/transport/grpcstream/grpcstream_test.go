package grpcstream_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/MrWong99/voxbridge/internal/fault"
	"github.com/MrWong99/voxbridge/internal/transport"
	"github.com/MrWong99/voxbridge/internal/transport/grpcstream"
)

// startServer runs h behind an in-memory listener and returns a connected
// Dialer.
func startServer(t *testing.T, h transport.Handler) *grpcstream.Dialer {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpcstream.NewServer(h)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	d, err := grpcstream.Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// collect drains every chunk of a stream.
func collect(ctx context.Context, r transport.ChunkReader) ([][]byte, error) {
	var out [][]byte
	for {
		b, err := r.Recv(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, b)
	}
}

func TestStream_RoundTrip(t *testing.T) {
	t.Parallel()
	got := make(chan [][]byte, 1)
	d := startServer(t, transport.HandlerFunc(func(ctx context.Context, r transport.ChunkReader) (string, error) {
		chunks, err := collect(ctx, r)
		got <- chunks
		return transport.StatusOK, err
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := d.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	want := [][]byte{{1, 0}, {2, 0}, {3, 0}, {4, 0}}
	for _, c := range want {
		if err := stream.Send(ctx, c); err != nil {
			t.Fatalf("Send() error: %v", err)
		}
	}
	msg, err := stream.CloseAndRecv(ctx)
	if err != nil {
		t.Fatalf("CloseAndRecv() error: %v", err)
	}
	if msg != transport.StatusOK {
		t.Errorf("receipt = %q, want %q", msg, transport.StatusOK)
	}

	chunks := <-got
	if len(chunks) != len(want) {
		t.Fatalf("server got %d chunks, want %d", len(chunks), len(want))
	}
	for i := range want {
		if !bytes.Equal(chunks[i], want[i]) {
			t.Errorf("chunk %d = %x, want %x", i, chunks[i], want[i])
		}
	}
}

func TestStream_EmptyCall(t *testing.T) {
	t.Parallel()
	d := startServer(t, transport.HandlerFunc(func(ctx context.Context, r transport.ChunkReader) (string, error) {
		chunks, err := collect(ctx, r)
		if len(chunks) != 0 {
			return "", errors.New("expected no chunks")
		}
		return transport.StatusOK, err
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := d.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if _, err := stream.CloseAndRecv(ctx); err != nil {
		t.Errorf("CloseAndRecv() error: %v", err)
	}
}

func TestStream_HandlerErrorMapsToStatus(t *testing.T) {
	t.Parallel()
	d := startServer(t, transport.HandlerFunc(func(ctx context.Context, r transport.ChunkReader) (string, error) {
		_, _ = collect(ctx, r)
		return "", fault.StreamTransport("read", errors.New("peer vanished"))
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := d.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	_, err = stream.CloseAndRecv(ctx)
	if !fault.Is(err, fault.KindStreamTransport) {
		t.Fatalf("CloseAndRecv() error = %v, want stream transport fault", err)
	}
	var fe *fault.Error
	if !errors.As(err, &fe) {
		t.Fatalf("error %T is not a *fault.Error", err)
	}
	if code := status.Code(fe.Err); code != codes.Unavailable {
		t.Errorf("status code = %v, want Unavailable", code)
	}
}

func TestStream_AbortReachesHandler(t *testing.T) {
	t.Parallel()
	handlerErr := make(chan error, 1)
	firstChunk := make(chan struct{})
	d := startServer(t, transport.HandlerFunc(func(ctx context.Context, r transport.ChunkReader) (string, error) {
		if _, err := r.Recv(ctx); err != nil {
			handlerErr <- err
			return "", err
		}
		close(firstChunk)
		_, err := collect(ctx, r)
		handlerErr <- err
		return transport.StatusOK, err
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := d.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := stream.Send(ctx, []byte{1, 2}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	select {
	case <-firstChunk:
	case <-ctx.Done():
		t.Fatal("server never received the first chunk")
	}
	stream.Abort()

	select {
	case err := <-handlerErr:
		if !fault.Is(err, fault.KindStreamTransport) {
			t.Errorf("handler error = %v, want stream transport fault", err)
		}
	case <-ctx.Done():
		t.Fatal("handler did not observe the aborted call")
	}
}

func TestStream_SendAfterAbortFails(t *testing.T) {
	t.Parallel()
	d := startServer(t, transport.HandlerFunc(func(ctx context.Context, r transport.ChunkReader) (string, error) {
		_, err := collect(ctx, r)
		return transport.StatusOK, err
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := d.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	stream.Abort()
	if _, err := stream.CloseAndRecv(ctx); !fault.Is(err, fault.KindStreamTransport) {
		t.Errorf("CloseAndRecv() after Abort error = %v, want stream transport fault", err)
	}
}
