// Package portaudio binds the capture Source and the WAV Player to the host
// sound devices through PortAudio.
//
// PortAudio is reference counted: every Open and NewPlayer call initialises
// the library and the matching Close releases it, so sources and players may
// be created and torn down independently.
package portaudio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/voxbridge/internal/fault"
	"github.com/MrWong99/voxbridge/pkg/audio"
)

// ---- capture ----------------------------------------------------------------

// Source reads fixed-size mono frames from an input device.
type Source struct {
	stream *portaudio.Stream
	format audio.Format
	buf    []int16
	seq    uint64
}

var _ audio.Source = (*Source)(nil)

// Open starts a mono 16-bit input stream on the named device (substring match,
// case-insensitive) or on the default input device when device is empty.
// Failures are reported as fault.KindDeviceIO.
func Open(ctx context.Context, format audio.Format, device string) (*Source, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fault.DeviceIO("portaudio initialize", err)
	}

	s := &Source{format: format, buf: make([]int16, format.SamplesPerFrame())}
	var (
		stream *portaudio.Stream
		err    error
	)
	if device == "" {
		stream, err = portaudio.OpenDefaultStream(1, 0, float64(format.SampleRate), len(s.buf), s.buf)
	} else {
		var info *portaudio.DeviceInfo
		info, err = findInput(device)
		if err == nil {
			params := portaudio.LowLatencyParameters(info, nil)
			params.Input.Channels = 1
			params.SampleRate = float64(format.SampleRate)
			params.FramesPerBuffer = len(s.buf)
			stream, err = portaudio.OpenStream(params, s.buf)
		}
	}
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fault.DeviceIO("open input stream", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fault.DeviceIO("start input stream", err)
	}
	s.stream = stream
	return s, nil
}

// ReadFrame blocks for the next frame. Input overflows are logged and the
// frame is still delivered.
func (s *Source) ReadFrame(ctx context.Context) (audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return audio.Frame{}, err
	}
	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return audio.Frame{}, fault.DeviceIO("read input stream", err)
		}
		slog.Debug("portaudio: input overflowed", "seq", s.seq)
	}
	data := make([]byte, len(s.buf)*audio.BytesPerSample)
	for i, v := range s.buf {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	}
	fr := audio.Frame{Data: data, Seq: s.seq}
	s.seq++
	return fr, nil
}

// Close stops the stream and releases PortAudio.
func (s *Source) Close() error {
	var errs []error
	if s.stream != nil {
		errs = append(errs, s.stream.Stop(), s.stream.Close())
		s.stream = nil
		errs = append(errs, portaudio.Terminate())
	}
	return errors.Join(errs...)
}

func findInput(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(name)
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), want) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("portaudio: no input device matching %q", name)
}

// ---- playback ---------------------------------------------------------------

// framesPerBuffer is the output block size used for playback.
const framesPerBuffer = 1024

// Player plays WAV files on the default output device.
type Player struct{}

// NewPlayer returns a Player. It holds no device between calls.
func NewPlayer() *Player { return &Player{} }

// Play decodes the WAV file at path and writes it to the default output
// device, stopping early when ctx is cancelled.
func (p *Player) Play(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("portaudio: open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return fmt.Errorf("portaudio: %s is not a valid wav file", path)
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("portaudio: decode %s: %w", path, err)
	}
	if pb == nil || pb.Format == nil || len(pb.Data) == 0 {
		return nil
	}
	channels := pb.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}

	if err := portaudio.Initialize(); err != nil {
		return fault.DeviceIO("portaudio initialize", err)
	}
	defer portaudio.Terminate()

	out := make([]int16, framesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(pb.Format.SampleRate), framesPerBuffer, out)
	if err != nil {
		return fault.DeviceIO("open output stream", err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return fault.DeviceIO("start output stream", err)
	}
	defer stream.Stop()

	shift := int(dec.BitDepth) - 16
	for off := 0; off < len(pb.Data); off += len(out) {
		if err := ctx.Err(); err != nil {
			return err
		}
		fillBlock(out, pb, off, shift)
		if err := stream.Write(); err != nil {
			return fault.DeviceIO("write output stream", err)
		}
	}
	return nil
}

// fillBlock copies samples from pb starting at off into out, scaling them to
// 16 bits and zero-padding the tail of the final block.
func fillBlock(out []int16, pb *goaudio.IntBuffer, off, shift int) {
	for i := range out {
		j := off + i
		if j >= len(pb.Data) {
			out[i] = 0
			continue
		}
		v := pb.Data[j]
		switch {
		case shift > 0:
			v >>= shift
		case shift < 0:
			v <<= -shift
		}
		out[i] = int16(v)
	}
}
