package wsstream_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voxbridge/internal/fault"
	"github.com/MrWong99/voxbridge/internal/transport"
	"github.com/MrWong99/voxbridge/internal/transport/wsstream"
)

func newServer(t *testing.T, h transport.Handler) *wsstream.Dialer {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(wsstream.Path, wsstream.NewHandler(h))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return wsstream.NewDialer("ws" + strings.TrimPrefix(srv.URL, "http") + wsstream.Path)
}

func drain(ctx context.Context, r transport.ChunkReader) ([][]byte, error) {
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
	d := newServer(t, transport.HandlerFunc(func(ctx context.Context, r transport.ChunkReader) (string, error) {
		chunks, err := drain(ctx, r)
		got <- chunks
		return transport.StatusOK, err
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := d.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	want := [][]byte{{9, 9}, {8, 8}, {7, 7}}
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

func TestStream_HandlerFailureHasNoReceipt(t *testing.T) {
	t.Parallel()
	d := newServer(t, transport.HandlerFunc(func(ctx context.Context, r transport.ChunkReader) (string, error) {
		_, _ = drain(ctx, r)
		return "", errors.New("boom")
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := d.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if _, err := stream.CloseAndRecv(ctx); !fault.Is(err, fault.KindStreamTransport) {
		t.Errorf("CloseAndRecv() error = %v, want stream transport fault", err)
	}
}

func TestStream_AbortReachesHandler(t *testing.T) {
	t.Parallel()
	handlerErr := make(chan error, 1)
	d := newServer(t, transport.HandlerFunc(func(ctx context.Context, r transport.ChunkReader) (string, error) {
		_, err := drain(ctx, r)
		handlerErr <- err
		return transport.StatusOK, err
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := d.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := stream.Send(ctx, []byte{1}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	stream.Abort()
	select {
	case err := <-handlerErr:
		if !fault.Is(err, fault.KindStreamTransport) {
			t.Errorf("handler error = %v, want stream transport fault", err)
		}
		if errors.Is(err, io.EOF) {
			t.Errorf("handler error = %v, must not read as a half-close", err)
		}
	case <-ctx.Done():
		t.Fatal("handler did not observe the aborted stream")
	}
}

func TestDialer_Unreachable(t *testing.T) {
	t.Parallel()
	d := wsstream.NewDialer("ws://127.0.0.1:1" + wsstream.Path)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := d.Open(ctx); !fault.Is(err, fault.KindStreamTransport) {
		t.Errorf("Open() error = %v, want stream transport fault", err)
	}
}
