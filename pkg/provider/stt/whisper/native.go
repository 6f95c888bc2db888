// This file holds the NativeProvider backed by the whisper.cpp CGO bindings.
// libwhisper.a and whisper.h must be reachable through LIBRARY_PATH and
// C_INCLUDE_PATH at build time.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/voxbridge/pkg/audio"
	"github.com/MrWong99/voxbridge/pkg/provider/stt"
)

var (
	_ stt.Provider    = (*NativeProvider)(nil)
	_ stt.Transcriber = (*NativeProvider)(nil)
)

// NativeProvider implements stt.Provider with an in-process whisper model.
// The model is loaded once and shared; every inference gets its own context.
type NativeProvider struct {
	model       whisperlib.Model
	language    string
	sampleRate  int
	maxBufferMs int
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the recognition language. Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeSampleRate sets the rate of incoming PCM. Audio at other rates is
// resampled to whisper's 16 kHz before inference. Defaults to 16000.
func WithNativeSampleRate(rate int) NativeOption {
	return func(p *NativeProvider) { p.sampleRate = rate }
}

// WithNativeMaxBufferMs caps the audio buffered per session.
func WithNativeMaxBufferMs(ms int) NativeOption {
	return func(p *NativeProvider) { p.maxBufferMs = ms }
}

// NewNative loads the ggml model at modelPath. Call Close to free it.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	p := &NativeProvider{
		model:       model,
		language:    defaultLanguage,
		sampleRate:  defaultSampleRate,
		maxBufferMs: defaultMaxBufferMs,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// StartStream opens a buffered session.
func (p *NativeProvider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = p.sampleRate
	}
	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	infer := func(ctx context.Context, pcm []byte) (string, error) {
		return p.infer(ctx, pcm, rate, lang)
	}
	return newBufferedSession(infer, maxBytes(p.maxBufferMs, rate)), nil
}

// Transcribe runs one inference over pcm at the provider sample rate.
func (p *NativeProvider) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	return p.infer(ctx, pcm, p.sampleRate, p.language)
}

func (p *NativeProvider) infer(ctx context.Context, pcm []byte, rate int, lang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	samples := audio.ToFloat32(audio.ResampleMono16(pcm, rate, whisperlib.SampleRate))

	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}

	// The encoder-begin callback returning false aborts the run.
	proceed := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(samples, proceed, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
