// Package mock provides a test double for the tts.Provider interface.
//
// Provider returns WAV (a tiny valid file by default) or Err, and records the
// text of every call.
//
//	p := &mock.Provider{Err: errors.New("synth engine down")}
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/voxbridge/pkg/audio"
	"github.com/MrWong99/voxbridge/pkg/provider/tts"
)

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// WAV is returned by Synthesize. Defaults to a short silent 16 kHz file.
	WAV []byte

	// Err is returned by Synthesize when non-nil.
	Err error

	texts []string
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	wav, err := p.WAV, p.Err
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if wav == nil {
		wav = audio.EncodeWAV(make([]byte, 320), 16000)
	}
	return slices.Clone(wav), nil
}

// Texts returns the text of every Synthesize call in order.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.texts)
}
