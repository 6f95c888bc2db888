// Package session tracks one wake-to-response cycle across the edge and the
// brain.
//
// The edge owns a session from the wake trigger until the stream is handed
// off; the brain owns it from stream accept until the response has been
// rendered. Both sides walk the same [State] sequence and log each transition
// with the session id, so one cycle can be followed through both processes.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle position of a session.
type State int

const (
	// WaitingWake is the edge state before a wake trigger.
	WaitingWake State = iota

	// Capturing means the wake phrase fired and the segmenter is waiting for
	// speech onset.
	Capturing

	// Streaming means utterance frames are travelling to the brain.
	Streaming

	// Transcribing means the brain has the whole utterance and is waiting for
	// the transcript.
	Transcribing

	// Dispatching means the transcript is being routed and executed.
	Dispatching

	// Responding means the response is being synthesized and played.
	Responding
)

// String returns the upper-case name used in logs.
func (s State) String() string {
	switch s {
	case WaitingWake:
		return "WAITING_WAKE"
	case Capturing:
		return "CAPTURING"
	case Streaming:
		return "STREAMING"
	case Transcribing:
		return "TRANSCRIBING"
	case Dispatching:
		return "DISPATCHING"
	case Responding:
		return "RESPONDING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// next lists the legal forward transitions.
var next = map[State][]State{
	WaitingWake:  {Capturing},
	Capturing:    {Streaming},
	Streaming:    {Transcribing},
	Transcribing: {Dispatching, Responding},
	Dispatching:  {Responding},
}

// CanTransition reports whether from → to is a legal forward step.
// Transcribing may skip Dispatching when the transcript is empty.
func CanTransition(from, to State) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Session is one wake-to-response cycle. It is safe for concurrent use.
type Session struct {
	id      string
	created time.Time
	log     *slog.Logger

	mu    sync.Mutex
	state State
	done  bool
}

// New creates a session with a fresh UUID in the given starting state. The
// edge starts in Capturing, the brain in Streaming.
func New(start State) *Session {
	id := uuid.NewString()
	return &Session{
		id:      id,
		created: time.Now(),
		state:   start,
		log:     slog.With("session_id", id),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Logger returns a logger tagged with the session id.
func (s *Session) Logger() *slog.Logger { return s.log }

// Age returns the time since the session was created.
func (s *Session) Age() time.Duration { return time.Since(s.created) }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to the next state. Illegal or post-finish
// transitions return an error and leave the state unchanged.
func (s *Session) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return fmt.Errorf("session: %s already finished", s.id)
	}
	if !CanTransition(s.state, to) {
		return fmt.Errorf("session: illegal transition %s -> %s", s.state, to)
	}
	s.log.Debug("session state", "from", s.state, "to", to)
	s.state = to
	return nil
}

// Finish marks the session destroyed with the given outcome
// ("completed", "abandoned", ...). Only the first call has effect; it
// reports whether this call finished the session.
func (s *Session) Finish(outcome string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return false
	}
	s.done = true
	s.log.Info("session finished",
		"outcome", outcome,
		"state", s.state,
		"duration", time.Since(s.created))
	return true
}

// Done reports whether Finish was called.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
