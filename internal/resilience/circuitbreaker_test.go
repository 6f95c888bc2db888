package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(cfg)
	cb.now = clk.Now
	return cb, clk
}

func fail(context.Context) error    { return errTest }
func succeed(context.Context) error { return nil }

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "cloud"})
	if cb.cfg.MaxFailures != 5 || cb.cfg.ResetTimeout != 30*time.Second || cb.cfg.HalfOpenMax != 3 {
		t.Errorf("defaults = %+v", cb.cfg)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
	if cb.Name() != "cloud" {
		t.Errorf("Name() = %q", cb.Name())
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	cb, _ := newTestBreaker(CircuitBreakerConfig{MaxFailures: 3})
	ctx := context.Background()

	_ = cb.Do(ctx, fail)
	_ = cb.Do(ctx, fail)
	_ = cb.Do(ctx, succeed)
	_ = cb.Do(ctx, fail)
	_ = cb.Do(ctx, fail)
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, a success should reset the count", cb.State())
	}
	_ = cb.Do(ctx, fail)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	called := false
	err := cb.Do(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("open breaker: err = %v, called = %v", err, called)
	}
}

func TestCircuitBreaker_HalfOpenCloses(t *testing.T) {
	t.Parallel()
	cb, clk := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute, HalfOpenMax: 2})
	ctx := context.Background()

	_ = cb.Do(ctx, fail)
	clk.Advance(59 * time.Second)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v before timeout, want open", cb.State())
	}
	clk.Advance(time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v after timeout, want half-open", cb.State())
	}

	if err := cb.Do(ctx, succeed); err != nil {
		t.Fatalf("probe 1: %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v after one probe, want half-open", cb.State())
	}
	if err := cb.Do(ctx, succeed); err != nil {
		t.Fatalf("probe 2: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v after %d successful probes, want closed", cb.State(), 2)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()
	cb, clk := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute})
	ctx := context.Background()

	_ = cb.Do(ctx, fail)
	clk.Advance(time.Minute)
	if err := cb.Do(ctx, fail); !errors.Is(err, errTest) {
		t.Fatalf("probe err = %v, want errTest", err)
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open after failed probe", cb.State())
	}
	if err := cb.Do(ctx, succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen (timer restarted)", err)
	}
}

func TestCircuitBreaker_ProbeBudget(t *testing.T) {
	t.Parallel()
	cb, clk := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Second, HalfOpenMax: 1})
	ctx := context.Background()
	_ = cb.Do(ctx, fail)
	clk.Advance(time.Second)

	inProbe := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- cb.Do(ctx, func(context.Context) error {
			close(inProbe)
			<-release
			return nil
		})
	}()
	<-inProbe
	if err := cb.Do(ctx, succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe err = %v, want ErrCircuitOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_CallerCancelNotCounted(t *testing.T) {
	t.Parallel()
	cb, _ := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1})
	err := cb.Do(context.Background(), func(context.Context) error {
		return fmt.Errorf("wrapped: %w", context.Canceled)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, cancellation must not trip the breaker", cb.State())
	}

	_ = cb.Do(context.Background(), func(context.Context) error { return context.DeadlineExceeded })
	if cb.State() != StateOpen {
		t.Errorf("state = %v, a deadline counts as a failure", cb.State())
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	t.Parallel()
	var (
		mu   sync.Mutex
		seen []string
	)
	cb, clk := newTestBreaker(CircuitBreakerConfig{
		Name:         "cloud",
		MaxFailures:  1,
		ResetTimeout: time.Second,
		HalfOpenMax:  1,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			seen = append(seen, name+":"+from.String()+">"+to.String())
			mu.Unlock()
		},
	})
	ctx := context.Background()
	_ = cb.Do(ctx, fail)
	clk.Advance(time.Second)
	_ = cb.Do(ctx, succeed)
	cb.Reset()

	want := []string{"cloud:closed>open", "cloud:open>half-open", "cloud:half-open>closed"}
	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Errorf("transitions = %v, want %v", seen, want)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()
	cb, _ := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	_ = cb.Do(context.Background(), fail)
	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("state = %v after Reset, want closed", cb.State())
	}
	if err := cb.Do(context.Background(), succeed); err != nil {
		t.Errorf("Do after Reset: %v", err)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	for s, want := range map[State]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open", State(9): "unknown"} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
