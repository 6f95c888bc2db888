// Package wakeword defines the Spotter interface for keyphrase detection on
// the edge device.
//
// A spotter is fed one frame at a time in capture order. Start and End bracket
// one listening attempt and reset decoder state; the capture loop calls End as
// soon as a trigger fires and Start again once the session has finished, so no
// audio from a previous attempt influences the next one.
package wakeword

// Spotter detects a configured keyphrase in a live stream.
type Spotter interface {
	// Start begins a listening attempt with clean decoder state.
	Start() error

	// Process consumes one frame of 16-bit mono PCM and reports whether the
	// keyphrase ended within it.
	Process(frame []byte) (bool, error)

	// End finishes the attempt and discards buffered audio.
	End() error
}

// Lagger is implemented by spotters that decide after the fact. Once Process
// has reported a trigger, Behind returns how many frames earlier the keyphrase
// ended: zero means in the frame just processed.
type Lagger interface {
	Behind() int
}
