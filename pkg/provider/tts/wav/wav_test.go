package wav_test

import (
	"encoding/binary"
	"testing"

	"github.com/MrWong99/voxbridge/pkg/audio"
	"github.com/MrWong99/voxbridge/pkg/provider/tts/wav"
)

func TestParse_EncodedWAV(t *testing.T) {
	t.Parallel()
	pcm := make([]byte, 100)
	info, err := wav.Parse(audio.EncodeWAV(pcm, 22050))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	want := wav.Info{DataOffset: 44, DataSize: 100, SampleRate: 22050, Channels: 1, BitDepth: 16}
	if info != want {
		t.Errorf("Parse() = %+v, want %+v", info, want)
	}
}

func TestParse_SkipsExtraChunks(t *testing.T) {
	t.Parallel()
	base := audio.EncodeWAV(make([]byte, 8), 16000)
	// Insert an odd-sized LIST chunk (padded to even) between fmt and data.
	list := []byte("LIST\x03\x00\x00\x00abc\x00")
	b := append(append(append([]byte{}, base[:36]...), list...), base[36:]...)
	binary.LittleEndian.PutUint32(b[4:8], uint32(len(b)-8))

	info, err := wav.Parse(b)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if info.DataOffset != 44+len(list) || info.DataSize != 8 {
		t.Errorf("Parse() = %+v", info)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()
	good := audio.EncodeWAV(make([]byte, 8), 16000)
	tests := map[string][]byte{
		"short":      []byte("RIFF"),
		"not riff":   append([]byte("RIFX"), good[4:]...),
		"not wave":   append(append([]byte{}, good[:8]...), append([]byte("AVI "), good[12:]...)...),
		"no data":    good[:36],
		"html error": []byte("<html><body>502 Bad Gateway</body></html>"),
	}
	for name, b := range tests {
		if _, err := wav.Parse(b); err == nil {
			t.Errorf("%s: Parse() expected error", name)
		}
	}
}
