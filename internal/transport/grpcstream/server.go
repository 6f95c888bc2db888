package grpcstream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/MrWong99/voxbridge/internal/fault"
	"github.com/MrWong99/voxbridge/internal/transport"
	"github.com/MrWong99/voxbridge/pkg/audiostream"
)

// Server exposes a transport.Handler as the AudioStreamer service. Every
// accepted call runs on its own goroutine; admission limits belong to the
// handler.
type Server struct {
	handler transport.Handler
	grpc    *grpc.Server
}

var _ audiostream.AudioStreamerServer = (*Server)(nil)

// NewServer creates a gRPC server with the AudioStreamer service registered.
// opts are appended after the codec option.
func NewServer(h transport.Handler, opts ...grpc.ServerOption) *Server {
	base := []grpc.ServerOption{grpc.ForceServerCodec(audiostream.Codec{})}
	s := &Server{handler: h, grpc: grpc.NewServer(append(base, opts...)...)}
	audiostream.RegisterAudioStreamerServer(s.grpc, s)
	return s
}

// Serve accepts calls on lis until GracefulStop or Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	slog.Info("grpc stream server listening", "addr", lis.Addr().String())
	err := s.grpc.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// GracefulStop stops accepting calls and waits for in-flight ones.
func (s *Server) GracefulStop() { s.grpc.GracefulStop() }

// Stop closes every call immediately.
func (s *Server) Stop() { s.grpc.Stop() }

// StreamAudio implements audiostream.AudioStreamerServer.
func (s *Server) StreamAudio(stream audiostream.StreamAudioServer) error {
	ctx := stream.Context()
	msg, err := s.handler.HandleStream(ctx, &chunkReader{stream: stream})
	if err != nil {
		return toStatus(ctx, err)
	}
	return stream.SendAndClose(&audiostream.StreamReceipt{StatusMessage: msg})
}

type chunkReader struct {
	stream audiostream.StreamAudioServer
}

func (r *chunkReader) Recv(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.StreamTransport("recv chunk", err)
	}
	m, err := r.stream.Recv()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fault.StreamTransport("recv chunk", err)
	}
	return m.GetAudioChunk(), nil
}

// toStatus maps handler errors onto gRPC status codes.
func toStatus(ctx context.Context, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case fault.Is(err, fault.KindStreamTransport):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
