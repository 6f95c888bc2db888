package skill

import (
	"context"
	"slices"

	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/voxbridge/pkg/provider/llm"
)

// DefaultHistoryLimit is the number of turns kept by [NewHistory] when given
// a non-positive limit.
const DefaultHistoryLimit = 6

// History is the rolling conversation shared by every session of the brain.
// A whole turn (append user, call model, append reply) runs under one lock, so
// concurrent sessions never interleave turns.
type History struct {
	limit int
	lock  *semaphore.Weighted
	turns []llm.Message
}

// NewHistory returns an empty History keeping at most limit messages.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit, lock: semaphore.NewWeighted(1)}
}

// Turn appends the user message, evicting the oldest entries beyond the
// limit, and calls ask with the resulting history. On success the reply is
// appended and returned. On failure the history is restored to its state
// before the turn. Waiting for the lock honours ctx.
func (h *History) Turn(ctx context.Context, user string, ask func(ctx context.Context, history []llm.Message) (string, error)) (string, error) {
	if err := h.lock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.lock.Release(1)

	before := h.turns
	h.turns = h.trim(append(slices.Clone(before), llm.Message{Role: llm.RoleUser, Content: user}))

	reply, err := ask(ctx, slices.Clone(h.turns))
	if err != nil {
		h.turns = before
		return "", err
	}
	h.turns = h.trim(append(h.turns, llm.Message{Role: llm.RoleAssistant, Content: reply}))
	return reply, nil
}

func (h *History) trim(turns []llm.Message) []llm.Message {
	if over := len(turns) - h.limit; over > 0 {
		return slices.Clone(turns[over:])
	}
	return turns
}

// Snapshot returns a copy of the current history. It waits for any turn in
// progress.
func (h *History) Snapshot() []llm.Message {
	_ = h.lock.Acquire(context.Background(), 1)
	defer h.lock.Release(1)
	return slices.Clone(h.turns)
}

// Limit returns the configured capacity.
func (h *History) Limit() int { return h.limit }
