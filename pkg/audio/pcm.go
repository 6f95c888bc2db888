package audio

import (
	"encoding/binary"
	"math"
)

// RMS returns the root-mean-square energy of a 16-bit PCM buffer in sample
// units (0–32767). Buffers shorter than one sample yield 0.
func RMS(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// ToFloat32 converts 16-bit PCM into samples normalised to [-1, 1]. A
// trailing odd byte is ignored.
func ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / BytesPerSample
	out := make([]float32, n)
	for i := range n {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return out
}

// EncodeWAV wraps mono 16-bit PCM in a 44-byte RIFF/WAVE header.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	const channels = 1
	byteRate := sampleRate * channels * BytesPerSample
	buf := make([]byte, 44+len(pcm))
	le := binary.LittleEndian

	copy(buf[0:4], "RIFF")
	le.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	le.PutUint32(buf[16:20], 16)
	le.PutUint16(buf[20:22], 1) // PCM
	le.PutUint16(buf[22:24], channels)
	le.PutUint32(buf[24:28], uint32(sampleRate))
	le.PutUint32(buf[28:32], uint32(byteRate))
	le.PutUint16(buf[32:34], channels*BytesPerSample)
	le.PutUint16(buf[34:36], 8*BytesPerSample)

	copy(buf[36:40], "data")
	le.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}

// ResampleMono16 converts mono 16-bit PCM from srcRate to dstRate with linear
// interpolation. Equal or invalid rates return the input unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < BytesPerSample {
		return pcm
	}
	srcN := len(pcm) / BytesPerSample
	dstN := int(int64(srcN) * int64(dstRate) / int64(srcRate))
	if dstN == 0 {
		return nil
	}
	sample := func(i int) float64 {
		return float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	out := make([]byte, dstN*BytesPerSample)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstN {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		s0 := sample(idx)
		s1 := s0
		if idx+1 < srcN {
			s1 = sample(idx + 1)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s0*(1-frac)+s1*frac)))
	}
	return out
}
