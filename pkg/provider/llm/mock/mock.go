// Package mock provides a test double for the llm.Provider interface.
//
// Provider records every Complete call (with a copy of the messages as they
// were at call time) and replies with Response, Err, or whatever CompleteFunc
// returns. Hang makes Complete block until its context ends, which is how
// tests exercise per-call deadlines.
//
//	p := &mock.Provider{Response: &llm.CompletionResponse{Content: "Hello!"}}
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/voxbridge/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Response is returned when Err is nil and CompleteFunc is unset.
	Response *llm.CompletionResponse

	// Err is returned from Complete when non-nil.
	Err error

	// CompleteFunc, when set, replaces Response and Err.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// Hang blocks Complete until ctx is done and returns ctx.Err().
	Hang bool

	calls []CompleteCall
}

var _ llm.Provider = (*Provider)(nil)

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	req.Messages = slices.Clone(req.Messages)

	p.mu.Lock()
	p.calls = append(p.calls, CompleteCall{Req: req})
	fn, hang, resp, err := p.CompleteFunc, p.Hang, p.Response, p.Err
	p.mu.Unlock()

	switch {
	case hang:
		<-ctx.Done()
		return nil, ctx.Err()
	case fn != nil:
		return fn(ctx, req)
	case err != nil:
		return nil, err
	case resp == nil:
		return &llm.CompletionResponse{}, nil
	}
	out := *resp
	return &out, nil
}

// Name implements llm.Provider.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Calls returns a copy of all recorded Complete invocations.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

// Reset clears the recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}
