// Package render speaks response text: it synthesizes a WAV file through a
// tts.Provider, writes it to a temporary file, plays it and removes the file
// again whether or not playback succeeded.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/MrWong99/voxbridge/internal/fault"
	"github.com/MrWong99/voxbridge/internal/observe"
	"github.com/MrWong99/voxbridge/pkg/provider/tts"
)

// Player plays the WAV file at path and returns when playback has finished.
type Player interface {
	Play(ctx context.Context, path string) error
}

// PlayerFunc adapts a function to [Player].
type PlayerFunc func(ctx context.Context, path string) error

// Play calls f.
func (f PlayerFunc) Play(ctx context.Context, path string) error { return f(ctx, path) }

// DefaultCommand is the external player used when none is configured.
const DefaultCommand = "aplay"

// CommandPlayer plays files by running an external program with the file path
// as its last argument, e.g. "aplay -q <path>".
type CommandPlayer struct {
	Command string
	Args    []string
}

var _ Player = (*CommandPlayer)(nil)

// Play runs the command and waits for it to exit.
func (p *CommandPlayer) Play(ctx context.Context, path string) error {
	name := p.Command
	if name == "" {
		name = DefaultCommand
	}
	args := append(append([]string(nil), p.Args...), path)
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if len(out) > 0 {
			return fmt.Errorf("render: %s: %w: %s", name, err, out)
		}
		return fmt.Errorf("render: %s: %w", name, err)
	}
	return nil
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTempDir sets the directory for temporary WAV files. Defaults to
// os.TempDir().
func WithTempDir(dir string) Option {
	return func(r *Renderer) { r.tempDir = dir }
}

// WithCue sets the acknowledgement sound played by PlayCue.
func WithCue(path string) Option {
	return func(r *Renderer) { r.cue = path }
}

// WithMetrics records the duration of every Speak call.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Renderer) { r.metrics = m }
}

// Renderer turns response text into sound. It holds no per-call state and is
// safe for concurrent use; overlapping calls play concurrently.
type Renderer struct {
	tts     tts.Provider
	player  Player
	tempDir string
	cue     string
	metrics *observe.Metrics
}

// New returns a Renderer synthesizing with p and playing with player.
func New(p tts.Provider, player Player, opts ...Option) *Renderer {
	r := &Renderer{tts: p, player: player}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Speak synthesizes text and plays it. Synthesis failures are
// fault.KindExternalService, playback failures fault.KindDeviceIO.
func (r *Renderer) Speak(ctx context.Context, text string) (err error) {
	ctx, span := observe.StartSpan(ctx, "render.speak")
	defer span.End()
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.RecordTTS(ctx, time.Since(start))
		}
	}()

	wav, err := r.tts.Synthesize(ctx, text)
	if err != nil {
		return fault.ExternalService("tts synthesize", err)
	}

	f, err := os.CreateTemp(r.tempDir, "voxbridge-*.wav")
	if err != nil {
		return fmt.Errorf("render: create temp file: %w", err)
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			observe.Logger(ctx).Warn("render: remove temp file", "path", path, "error", rmErr)
		}
	}()

	_, werr := f.Write(wav)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("render: write %s: %w", path, werr)
	}

	if err := r.player.Play(ctx, path); err != nil {
		return fault.DeviceIO("play response", err)
	}
	return nil
}

// PlayCue plays the acknowledgement sound. It is a no-op when no cue is
// configured.
func (r *Renderer) PlayCue(ctx context.Context) error {
	if r.cue == "" {
		return nil
	}
	if err := r.player.Play(ctx, r.cue); err != nil {
		return fault.DeviceIO("play cue", err)
	}
	return nil
}
