package resilience

import (
	"context"
	"strings"

	"github.com/MrWong99/voxbridge/pkg/provider/llm"
)

// LLMFallback is an [llm.Provider] that fails over across several backends,
// each behind its own circuit breaker.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an LLMFallback with primary as the preferred backend.
// Entries are named after the providers' Name.
func NewLLMFallback(primary llm.Provider, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary.Name(), primary, cfg)}
}

// AddFallback registers another backend after the existing ones.
func (f *LLMFallback) AddFallback(p llm.Provider) {
	f.group.AddFallback(p.Name(), p)
}

// Complete implements llm.Provider.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Name implements llm.Provider.
func (f *LLMFallback) Name() string {
	return "fallback(" + strings.Join(f.group.Names(), ",") + ")"
}
