package audio_test

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/MrWong99/voxbridge/pkg/audio"
)

func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestFormat_Sizes(t *testing.T) {
	t.Parallel()
	f := audio.DefaultFormat
	if got := f.SamplesPerFrame(); got != 480 {
		t.Errorf("SamplesPerFrame() = %d, want 480", got)
	}
	if got := f.FrameBytes(); got != 960 {
		t.Errorf("FrameBytes() = %d, want 960", got)
	}
	if got := f.FramesFor(300 * time.Millisecond); got != 10 {
		t.Errorf("FramesFor(300ms) = %d, want 10", got)
	}
	if got := f.FramesFor(1500 * time.Millisecond); got != 50 {
		t.Errorf("FramesFor(1.5s) = %d, want 50", got)
	}
	if got := f.FramesFor(31 * time.Millisecond); got != 2 {
		t.Errorf("FramesFor(31ms) = %d, want 2 (rounded up)", got)
	}
}

func TestFormat_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		f       audio.Format
		wantErr bool
	}{
		{"default", audio.DefaultFormat, false},
		{"zero rate", audio.Format{FrameMs: 20}, true},
		{"zero frame", audio.Format{SampleRate: 16000}, true},
		{"sub-sample frame", audio.Format{SampleRate: 100, FrameMs: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.f.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFormat_Check(t *testing.T) {
	t.Parallel()
	f := audio.DefaultFormat
	if err := f.Check(audio.Frame{Data: make([]byte, 960)}); err != nil {
		t.Errorf("Check(960 bytes) error: %v", err)
	}
	if err := f.Check(audio.Frame{Data: make([]byte, 100)}); err == nil {
		t.Error("Check(100 bytes) expected error, got nil")
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()
	if got := audio.RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := audio.RMS(samplesToBytes([]int16{0, 0, 0})); got != 0 {
		t.Errorf("RMS(silence) = %v, want 0", got)
	}
	got := audio.RMS(samplesToBytes([]int16{1000, -1000, 1000, -1000}))
	if math.Abs(got-1000) > 1e-9 {
		t.Errorf("RMS(square) = %v, want 1000", got)
	}
}

func TestToFloat32(t *testing.T) {
	t.Parallel()
	got := audio.ToFloat32(samplesToBytes([]int16{0, 16384, -32768}))
	want := []float32{0, 0.5, -1}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEncodeWAV_Header(t *testing.T) {
	t.Parallel()
	pcm := samplesToBytes([]int16{1, 2, 3, 4})
	wav := audio.EncodeWAV(pcm, 16000)
	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Errorf("malformed header: %q", wav[:44])
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if n := binary.LittleEndian.Uint32(wav[40:44]); int(n) != len(pcm) {
		t.Errorf("data size = %d, want %d", n, len(pcm))
	}
}

func TestResampleMono16(t *testing.T) {
	t.Parallel()
	pcm := samplesToBytes(make([]int16, 480))
	if got := audio.ResampleMono16(pcm, 16000, 16000); len(got) != len(pcm) {
		t.Errorf("same rate len = %d, want %d", len(got), len(pcm))
	}
	if got := audio.ResampleMono16(pcm, 48000, 16000); len(got) != 160*2 {
		t.Errorf("48k->16k len = %d, want %d", len(got), 160*2)
	}
	if got := audio.ResampleMono16(pcm, 16000, 48000); len(got) != 1440*2 {
		t.Errorf("16k->48k len = %d, want %d", len(got), 1440*2)
	}
}
