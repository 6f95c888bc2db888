// Package grpcstream binds the session stream to the AudioStreamer gRPC
// service: a client-streaming call of Chunk messages answered by one
// StreamReceipt.
package grpcstream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/MrWong99/voxbridge/internal/fault"
	"github.com/MrWong99/voxbridge/internal/transport"
	"github.com/MrWong99/voxbridge/pkg/audiostream"
)

// Dialer opens StreamAudio calls on a shared client connection.
type Dialer struct {
	conn   *grpc.ClientConn
	client audiostream.AudioStreamerClient
}

var _ transport.Dialer = (*Dialer)(nil)

// Dial creates a client for target ("host:port"). The connection is plaintext
// and uses the audiostream codec; opts are applied after those defaults.
// No network activity happens until the first Open.
func Dial(target string, opts ...grpc.DialOption) (*Dialer, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(audiostream.Codec{})),
	}
	conn, err := grpc.NewClient(target, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("grpcstream: dial %s: %w", target, err)
	}
	return &Dialer{conn: conn, client: audiostream.NewAudioStreamerClient(conn)}, nil
}

// Open starts one StreamAudio call. The call lives until CloseAndRecv
// returns, Abort is called or ctx ends.
func (d *Dialer) Open(ctx context.Context) (transport.Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := d.client.StreamAudio(ctx)
	if err != nil {
		cancel()
		return nil, fault.StreamTransport("open stream", err)
	}
	return &clientStream{stream: stream, cancel: cancel}, nil
}

// Close releases the client connection.
func (d *Dialer) Close() error {
	return d.conn.Close()
}

type clientStream struct {
	stream audiostream.StreamAudioClient
	cancel context.CancelFunc
}

func (s *clientStream) Send(ctx context.Context, chunk []byte) error {
	if err := ctx.Err(); err != nil {
		return fault.StreamTransport("send chunk", err)
	}
	err := s.stream.Send(&audiostream.Chunk{AudioChunk: chunk})
	if errors.Is(err, io.EOF) {
		// The server ended the call; the real status arrives with the
		// receipt.
		_, err = s.stream.CloseAndRecv()
		if err == nil {
			err = errors.New("server closed the stream early")
		}
	}
	if err != nil {
		return fault.StreamTransport("send chunk", err)
	}
	return nil
}

func (s *clientStream) CloseAndRecv(ctx context.Context) (string, error) {
	type result struct {
		receipt *audiostream.StreamReceipt
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		r, err := s.stream.CloseAndRecv()
		ch <- result{r, err}
	}()

	defer s.cancel()
	select {
	case <-ctx.Done():
		return "", fault.StreamTransport("await receipt", ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return "", fault.StreamTransport("await receipt", res.err)
		}
		return res.receipt.GetStatusMessage(), nil
	}
}

func (s *clientStream) Abort() {
	s.cancel()
}
