package audiostream

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "audiostream.AudioStreamer"

	// StreamAudioFullMethod is the full method name of StreamAudio.
	StreamAudioFullMethod = "/audiostream.AudioStreamer/StreamAudio"
)

// StreamAudioServer is the server side of one StreamAudio call.
type StreamAudioServer = grpc.ClientStreamingServer[Chunk, StreamReceipt]

// StreamAudioClient is the client side of one StreamAudio call.
type StreamAudioClient = grpc.ClientStreamingClient[Chunk, StreamReceipt]

// AudioStreamerServer is implemented by the brain service.
type AudioStreamerServer interface {
	StreamAudio(StreamAudioServer) error
}

// UnimplementedAudioStreamerServer can be embedded for forward compatibility.
type UnimplementedAudioStreamerServer struct{}

// StreamAudio returns codes.Unimplemented.
func (UnimplementedAudioStreamerServer) StreamAudio(StreamAudioServer) error {
	return status.Error(codes.Unimplemented, "method StreamAudio not implemented")
}

// ServiceDesc describes the AudioStreamer service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AudioStreamerServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamAudio",
			Handler:       streamAudioHandler,
			ClientStreams: true,
		},
	},
	Metadata: "audiostream.proto",
}

func streamAudioHandler(srv any, stream grpc.ServerStream) error {
	return srv.(AudioStreamerServer).StreamAudio(&grpc.GenericServerStream[Chunk, StreamReceipt]{ServerStream: stream})
}

// RegisterAudioStreamerServer registers srv on s.
func RegisterAudioStreamerServer(s grpc.ServiceRegistrar, srv AudioStreamerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// AudioStreamerClient opens StreamAudio calls.
type AudioStreamerClient interface {
	StreamAudio(ctx context.Context, opts ...grpc.CallOption) (StreamAudioClient, error)
}

type audioStreamerClient struct {
	cc grpc.ClientConnInterface
}

// NewAudioStreamerClient returns a client bound to cc.
func NewAudioStreamerClient(cc grpc.ClientConnInterface) AudioStreamerClient {
	return &audioStreamerClient{cc: cc}
}

func (c *audioStreamerClient) StreamAudio(ctx context.Context, opts ...grpc.CallOption) (StreamAudioClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], StreamAudioFullMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[Chunk, StreamReceipt]{ClientStream: stream}, nil
}
