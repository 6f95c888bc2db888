package capture

import (
	"errors"
	"fmt"

	"github.com/MrWong99/voxbridge/pkg/audio"
)

// Phase is the position of the segmenter state machine.
type Phase int

const (
	// PhaseIdle waits for a wake trigger. Nothing is buffered: the wake
	// frame is the first frame of every utterance.
	PhaseIdle Phase = iota

	// PhaseBufferingPreroll waits for the first speech frame after a wake
	// trigger, buffering frames in the ring.
	PhaseBufferingPreroll

	// PhaseTriggered emits frames while speech continues.
	PhaseTriggered

	// PhaseHangover emits frames while counting trailing silence.
	PhaseHangover
)

// String returns the phase name used in logs.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseBufferingPreroll:
		return "BUFFERING_PREROLL"
	case PhaseTriggered:
		return "TRIGGERED"
	case PhaseHangover:
		return "HANGOVER"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// SegmenterConfig bounds one utterance, in frames.
type SegmenterConfig struct {
	// PrerollFrames is the ring capacity. After a wake trigger it is also the
	// number of frames allowed before speech must start. Default: 10.
	PrerollFrames int

	// HangoverFrames is the number of consecutive silence frames that closes
	// an utterance. The last of them is emitted with End set. Default: 50.
	HangoverFrames int

	// MaxFrames closes an utterance after this many emitted frames even
	// while speech continues. Default: 500.
	MaxFrames int
}

// WithDefaults fills zero fields.
func (c SegmenterConfig) WithDefaults() SegmenterConfig {
	if c.PrerollFrames == 0 {
		c.PrerollFrames = 10
	}
	if c.HangoverFrames == 0 {
		c.HangoverFrames = 50
	}
	if c.MaxFrames == 0 {
		c.MaxFrames = 500
	}
	return c
}

// Validate reports impossible bounds.
func (c SegmenterConfig) Validate() error {
	var errs []error
	if c.PrerollFrames < 1 {
		errs = append(errs, fmt.Errorf("capture: preroll frames must be at least 1, got %d", c.PrerollFrames))
	}
	if c.HangoverFrames < 1 {
		errs = append(errs, fmt.Errorf("capture: hangover frames must be at least 1, got %d", c.HangoverFrames))
	}
	if c.MaxFrames <= c.PrerollFrames {
		errs = append(errs, fmt.Errorf("capture: max frames (%d) must exceed preroll frames (%d)", c.MaxFrames, c.PrerollFrames))
	}
	return errors.Join(errs...)
}

// State is an immutable snapshot of the segmenter. The zero value is idle
// with an empty ring.
type State struct {
	Phase Phase

	ring    []audio.Frame // oldest first, never longer than PrerollFrames; empty unless buffering
	silence int           // consecutive silence frames since the last speech frame
	emitted int           // frames emitted in the current utterance
}

// Buffered returns how many frames the ring holds.
func (s State) Buffered() int { return len(s.ring) }

// Input is one frame with its classification. Wake is only consulted while
// idle; Speech is ignored while idle.
type Input struct {
	Frame  audio.Frame
	Wake   bool
	Speech bool
}

// Emission is what one step produced.
type Emission struct {
	// Frames to send, in capture order.
	Frames []audio.Frame

	// Woke is set on the step that accepted a wake trigger.
	Woke bool

	// Started is set on the first emission of an utterance.
	Started bool

	// End is set on the last emission of an utterance.
	End bool

	// Abandon is set when the ring filled after a wake trigger without any
	// speech. Nothing was emitted for that attempt.
	Abandon bool
}

// Step is the segmenter transition function. It never modifies s.
func Step(cfg SegmenterConfig, s State, in Input) (State, Emission) {
	switch s.Phase {
	case PhaseIdle:
		if in.Wake {
			// The wake frame becomes the oldest buffered frame so the
			// utterance starts exactly where the keyphrase ended.
			return State{Phase: PhaseBufferingPreroll, ring: []audio.Frame{in.Frame}}, Emission{Woke: true}
		}
		return s, Emission{}

	case PhaseBufferingPreroll:
		if in.Speech {
			frames := make([]audio.Frame, 0, len(s.ring)+1)
			frames = append(frames, s.ring...)
			frames = append(frames, in.Frame)
			next := State{Phase: PhaseTriggered, emitted: len(frames)}
			return capLength(cfg, next, Emission{Frames: frames, Started: true})
		}
		if len(s.ring) >= cfg.PrerollFrames {
			return State{}, Emission{Abandon: true}
		}
		s.ring = push(s.ring, in.Frame, cfg.PrerollFrames)
		return s, Emission{}

	case PhaseTriggered, PhaseHangover:
		next := State{Phase: PhaseTriggered, emitted: s.emitted + 1}
		if !in.Speech {
			next.Phase = PhaseHangover
			next.silence = s.silence + 1
		}
		em := Emission{Frames: []audio.Frame{in.Frame}}
		if next.silence >= cfg.HangoverFrames {
			em.End = true
			return State{}, em
		}
		return capLength(cfg, next, em)
	}
	return s, Emission{}
}

// capLength closes the utterance once it reaches MaxFrames.
func capLength(cfg SegmenterConfig, next State, em Emission) (State, Emission) {
	if next.emitted >= cfg.MaxFrames {
		em.End = true
		return State{}, em
	}
	return next, em
}

// push appends f to a copy of ring, keeping at most n frames.
func push(ring []audio.Frame, f audio.Frame, n int) []audio.Frame {
	start := 0
	if len(ring) >= n {
		start = len(ring) - n + 1
	}
	out := make([]audio.Frame, 0, n)
	out = append(out, ring[start:]...)
	return append(out, f)
}

// Segmenter holds the current State for a capture loop. It is not safe for
// concurrent use.
type Segmenter struct {
	cfg   SegmenterConfig
	state State
}

// NewSegmenter validates cfg after applying defaults.
func NewSegmenter(cfg SegmenterConfig) (*Segmenter, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{cfg: cfg}, nil
}

// Feed advances the machine by one frame.
func (s *Segmenter) Feed(in Input) Emission {
	var em Emission
	s.state, em = Step(s.cfg, s.state, in)
	return em
}

// Phase returns the current phase.
func (s *Segmenter) Phase() Phase { return s.state.Phase }

// Reset abandons any utterance in progress and empties the ring.
func (s *Segmenter) Reset() { s.state = State{} }

// Config returns the effective configuration.
func (s *Segmenter) Config() SegmenterConfig { return s.cfg }
