// Package audio holds the frame and format types shared by the edge capture
// loop and the brain service, plus small PCM helpers.
//
// All audio in the pipeline is 16-bit signed little-endian mono PCM. The
// sample rate and frame duration are fixed for the lifetime of a pipeline and
// described by a [Format].
package audio

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// BytesPerSample is fixed for 16-bit PCM.
const BytesPerSample = 2

// DefaultFormat is 16 kHz mono with 30 ms frames (480 samples, 960 bytes).
var DefaultFormat = Format{SampleRate: 16000, FrameMs: 30}

// Frame is one fixed-duration block of mono PCM. Seq is the capture sequence
// number assigned by the source; it increases by one per frame and lets
// downstream stages verify ordering.
type Frame struct {
	Data []byte
	Seq  uint64
}

// Format describes the fixed sample rate and frame duration of a stream.
type Format struct {
	SampleRate int
	FrameMs    int
}

// SamplesPerFrame returns the number of samples in one frame.
func (f Format) SamplesPerFrame() int {
	return f.SampleRate * f.FrameMs / 1000
}

// FrameBytes returns the byte length of one frame.
func (f Format) FrameBytes() int {
	return f.SamplesPerFrame() * BytesPerSample
}

// FrameDuration returns the wall-clock duration of one frame.
func (f Format) FrameDuration() time.Duration {
	return time.Duration(f.FrameMs) * time.Millisecond
}

// FramesFor returns how many whole frames cover d, rounding up. It returns 0
// for non-positive durations.
func (f Format) FramesFor(d time.Duration) int {
	if d <= 0 || f.FrameMs <= 0 {
		return 0
	}
	fd := f.FrameDuration()
	return int((d + fd - 1) / fd)
}

// Validate reports whether f describes a usable stream.
func (f Format) Validate() error {
	var errs []error
	if f.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio: sample rate must be positive, got %d", f.SampleRate))
	}
	if f.FrameMs <= 0 {
		errs = append(errs, fmt.Errorf("audio: frame duration must be positive, got %d ms", f.FrameMs))
	}
	if len(errs) == 0 && f.SamplesPerFrame() == 0 {
		errs = append(errs, errors.New("audio: frame holds no samples"))
	}
	return errors.Join(errs...)
}

// Check returns an error when fr does not hold exactly one frame of f.
func (f Format) Check(fr Frame) error {
	if want := f.FrameBytes(); len(fr.Data) != want {
		return fmt.Errorf("audio: frame %d has %d bytes, want %d", fr.Seq, len(fr.Data), want)
	}
	return nil
}

// Source is a blocking capture device. ReadFrame returns the next frame in
// capture order. Implementations report hardware failures with an error of
// kind fault.KindDeviceIO so the capture loop can reopen the device.
type Source interface {
	ReadFrame(ctx context.Context) (Frame, error)
	Close() error
}

// SourceOpener opens a fresh Source. The capture loop calls it again after a
// device failure.
type SourceOpener func(ctx context.Context) (Source, error)
