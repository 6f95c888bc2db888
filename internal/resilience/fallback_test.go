package resilience

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func newGroup(names ...string) *FallbackGroup[string] {
	fg := NewFallbackGroup(names[0], names[0], FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	for _, n := range names[1:] {
		fg.AddFallback(n, n)
	}
	return fg
}

func TestFallbackGroup_PrimaryFirst(t *testing.T) {
	t.Parallel()
	fg := newGroup("primary", "secondary")
	var called []string
	err := fg.Execute(context.Background(), func(_ context.Context, v string) error {
		called = append(called, v)
		return nil
	})
	if err != nil || !slices.Equal(called, []string{"primary"}) {
		t.Errorf("called = %v, err = %v", called, err)
	}
}

func TestFallbackGroup_FailsOver(t *testing.T) {
	t.Parallel()
	fg := newGroup("primary", "secondary", "tertiary")
	got, err := ExecuteWithResult(context.Background(), fg, func(_ context.Context, v string) (string, error) {
		if v == "tertiary" {
			return "answer from " + v, nil
		}
		return "", errTest
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult() error: %v", err)
	}
	if got != "answer from tertiary" {
		t.Errorf("result = %q", got)
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	t.Parallel()
	fg := newGroup("primary", "secondary")
	err := fg.Execute(context.Background(), func(context.Context, string) error { return errTest })
	if !errors.Is(err, ErrAllFailed) || !errors.Is(err, errTest) {
		t.Errorf("err = %v, want ErrAllFailed wrapping the last error", err)
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()
	fg := newGroup("primary", "secondary")
	ctx := context.Background()
	flaky := func(_ context.Context, v string) error {
		if v == "primary" {
			return errTest
		}
		return nil
	}
	for range 2 {
		_ = fg.Execute(ctx, flaky)
	}
	if st := fg.Breaker("primary").State(); st != StateOpen {
		t.Fatalf("primary breaker = %v, want open", st)
	}

	var called []string
	_ = fg.Execute(ctx, func(_ context.Context, v string) error {
		called = append(called, v)
		return nil
	})
	if !slices.Equal(called, []string{"secondary"}) {
		t.Errorf("called = %v, want only secondary", called)
	}
}

func TestFallbackGroup_DeadlineStopsWalk(t *testing.T) {
	t.Parallel()
	fg := newGroup("primary", "secondary")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var called []string
	err := fg.Execute(ctx, func(ctx context.Context, v string) error {
		called = append(called, v)
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if errors.Is(err, ErrAllFailed) {
		t.Error("a deadline should not be reported as ErrAllFailed")
	}
	if !slices.Equal(called, []string{"primary"}) {
		t.Errorf("called = %v, the walk should stop at the deadline", called)
	}
}

func TestFallbackGroup_Names(t *testing.T) {
	t.Parallel()
	fg := newGroup("a", "b", "c")
	if got := fg.Names(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("Names() = %v", got)
	}
	if fg.Breaker("missing") != nil {
		t.Error("Breaker(missing) should be nil")
	}
}
