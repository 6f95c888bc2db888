// Package resilience holds the failure policies shared by the edge and the
// brain: bounded exponential retry for device reopen ([Retry]), a
// three-state [CircuitBreaker] and a [FallbackGroup] that walks an ordered
// list of backends, each behind its own breaker, within one caller deadline.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Do] while the breaker is open
// or while its half-open probe budget is spent.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until ResetTimeout has
	// passed since the last failure.
	StateOpen

	// StateHalfOpen lets up to HalfOpenMax probes through. One failure
	// re-opens, HalfOpenMax successes close.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels log lines and state-change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the probe budget of the half-open state. Default: 3.
	HalfOpenMax int

	// OnStateChange, if set, is called (outside the lock) after each
	// transition.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu              sync.Mutex
	state           State
	consecutiveFail int
	openedAt        time.Time
	probes          int
	probeSuccesses  int
}

// NewCircuitBreaker creates a [CircuitBreaker]. Zero-value config fields are
// replaced with defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Name returns the configured label.
func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

// Do runs fn if the breaker admits the call. Cancellation of the caller's
// context (context.Canceled) is not held against the backend; every other
// error, deadline expiry included, counts as a failure.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(context.Context) error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	switch {
	case err == nil:
		cb.settle(probe, true)
	case errors.Is(err, context.Canceled):
		cb.release(probe)
	default:
		cb.settle(probe, false)
	}
	return err
}

func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	var from State
	changed := false
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.ResetTimeout {
			cb.mu.Unlock()
			return false, ErrCircuitOpen
		}
		from, changed = cb.state, true
		cb.state = StateHalfOpen
		cb.probes, cb.probeSuccesses = 0, 0
		fallthrough
	case StateHalfOpen:
		if cb.probes >= cb.cfg.HalfOpenMax {
			cb.mu.Unlock()
			cb.notify(changed, from, StateHalfOpen)
			return false, ErrCircuitOpen
		}
		cb.probes++
		probe = true
	}
	cb.mu.Unlock()
	cb.notify(changed, from, StateHalfOpen)
	return probe, nil
}

// release returns an unused probe slot.
func (cb *CircuitBreaker) release(probe bool) {
	if !probe {
		return
	}
	cb.mu.Lock()
	if cb.state == StateHalfOpen && cb.probes > 0 {
		cb.probes--
	}
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) settle(probe, ok bool) {
	cb.mu.Lock()
	from := cb.state
	switch {
	case probe && cb.state != StateHalfOpen:
		// A concurrent probe already decided the outcome.
	case probe && ok:
		cb.probeSuccesses++
		if cb.probeSuccesses >= cb.cfg.HalfOpenMax {
			cb.state = StateClosed
			cb.consecutiveFail = 0
		}
	case probe:
		cb.state = StateOpen
		cb.openedAt = cb.now()
	case ok:
		cb.consecutiveFail = 0
	default:
		cb.consecutiveFail++
		if cb.state == StateClosed && cb.consecutiveFail >= cb.cfg.MaxFailures {
			cb.state = StateOpen
			cb.openedAt = cb.now()
		}
	}
	to, failures := cb.state, cb.consecutiveFail
	cb.mu.Unlock()

	if from != to {
		slog.Warn("circuit breaker state change",
			"name", cb.cfg.Name, "from", from.String(), "to", to.String(), "consecutive_failures", failures)
	}
	cb.notify(from != to, from, to)
}

func (cb *CircuitBreaker) notify(changed bool, from, to State) {
	if changed && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

// State returns the current state. An open breaker whose reset timeout has
// passed reports [StateHalfOpen]; the transition itself happens on the next
// call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = StateClosed
	cb.consecutiveFail = 0
	cb.probes, cb.probeSuccesses = 0, 0
	cb.mu.Unlock()
	cb.notify(from != StateClosed, from, StateClosed)
}
