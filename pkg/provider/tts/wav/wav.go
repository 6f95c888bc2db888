// Package wav inspects RIFF/WAVE containers returned by synthesis backends.
package wav

import (
	"encoding/binary"
	"errors"
)

// Info is the format metadata of a WAV file.
type Info struct {
	// DataOffset is the byte offset of the first PCM sample.
	DataOffset int
	// DataSize is the declared length of the data chunk, clipped to the file.
	DataSize   int
	SampleRate int
	Channels   int
	BitDepth   int
}

// Parse walks the RIFF chunks of b and returns its format. The fmt chunk
// must precede the data chunk.
func Parse(b []byte) (Info, error) {
	if len(b) < 12 {
		return Info{}, errors.New("wav: too short to be a RIFF file")
	}
	if string(b[0:4]) != "RIFF" {
		return Info{}, errors.New("wav: missing RIFF header")
	}
	if string(b[8:12]) != "WAVE" {
		return Info{}, errors.New("wav: missing WAVE identifier")
	}

	var info Info
	foundFmt := false
	offset := 12
	for offset+8 <= len(b) {
		id := string(b[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(b[offset+4 : offset+8]))

		switch id {
		case "fmt ":
			if size < 16 || offset+8+16 > len(b) {
				return Info{}, errors.New("wav: truncated fmt chunk")
			}
			f := b[offset+8:]
			info.Channels = int(binary.LittleEndian.Uint16(f[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			info.BitDepth = int(binary.LittleEndian.Uint16(f[14:16]))
			foundFmt = true
		case "data":
			if !foundFmt {
				return Info{}, errors.New("wav: data chunk before fmt chunk")
			}
			info.DataOffset = offset + 8
			info.DataSize = min(size, len(b)-info.DataOffset)
			return info, nil
		}

		// Chunks are word aligned.
		offset += 8 + size
		if size%2 != 0 {
			offset++
		}
	}
	return Info{}, errors.New("wav: missing data chunk")
}
