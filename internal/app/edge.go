package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/MrWong99/voxbridge/internal/capture"
	"github.com/MrWong99/voxbridge/internal/config"
	"github.com/MrWong99/voxbridge/internal/observe"
	"github.com/MrWong99/voxbridge/internal/resilience"
	"github.com/MrWong99/voxbridge/internal/transport"
	"github.com/MrWong99/voxbridge/internal/transport/grpcstream"
	"github.com/MrWong99/voxbridge/internal/transport/wsstream"
	"github.com/MrWong99/voxbridge/pkg/audio"
	"github.com/MrWong99/voxbridge/pkg/audio/portaudio"
	"github.com/MrWong99/voxbridge/pkg/provider/stt"
	"github.com/MrWong99/voxbridge/pkg/provider/stt/whisper"
	"github.com/MrWong99/voxbridge/pkg/provider/vad"
	"github.com/MrWong99/voxbridge/pkg/provider/wakeword"
	"github.com/MrWong99/voxbridge/pkg/provider/wakeword/phonetic"
)

// Wake phrase defaults applied when the wakeword entry leaves them unset.
const (
	DefaultWakePhrase    = "bridge to engineering"
	DefaultWakeThreshold = 0.85
)

// Edge is the capture device process.
type Edge struct {
	runner  *capture.Runner
	closers []func() error
}

type edgeDeps struct {
	open    audio.SourceOpener
	spotter wakeword.Spotter
	vad     vad.Engine
	dialer  transport.Dialer
	metrics *observe.Metrics
}

// EdgeOption replaces one of the edge's hardware or network dependencies.
type EdgeOption func(*edgeDeps)

// WithSourceOpener replaces the PortAudio microphone.
func WithSourceOpener(open audio.SourceOpener) EdgeOption {
	return func(d *edgeDeps) { d.open = open }
}

// WithSpotter replaces the phonetic wake phrase spotter.
func WithSpotter(s wakeword.Spotter) EdgeOption {
	return func(d *edgeDeps) { d.spotter = s }
}

// WithVADEngine replaces the registry VAD engine.
func WithVADEngine(e vad.Engine) EdgeOption {
	return func(d *edgeDeps) { d.vad = e }
}

// WithDialer replaces the configured stream transport.
func WithDialer(t transport.Dialer) EdgeOption {
	return func(d *edgeDeps) { d.dialer = t }
}

// WithEdgeMetrics sets the metrics recorder. Defaults to [observe.DefaultMetrics].
func WithEdgeMetrics(m *observe.Metrics) EdgeOption {
	return func(d *edgeDeps) { d.metrics = m }
}

// NewEdge builds the capture loop from cfg. Dependencies not supplied as
// options are constructed from configuration.
func NewEdge(cfg *config.Config, reg *config.Registry, opts ...EdgeOption) (*Edge, error) {
	d := &edgeDeps{}
	for _, o := range opts {
		o(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	e := &Edge{}
	ec := cfg.Edge
	format := audio.Format{SampleRate: ec.SampleRate, FrameMs: ec.FrameMs}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("app: edge format: %w", err)
	}

	if d.open == nil {
		d.open = func(ctx context.Context) (audio.Source, error) {
			s, err := portaudio.Open(ctx, format, ec.InputDevice)
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}

	if d.spotter == nil {
		s, err := e.newSpotter(cfg.Providers.Wakeword, format)
		if err != nil {
			e.Close()
			return nil, err
		}
		d.spotter = s
	}

	if d.vad == nil {
		engine, err := reg.CreateVAD(cfg.Providers.VAD)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("app: create vad engine: %w", err)
		}
		d.vad = engine
	}
	vadSess, err := d.vad.NewSession(vad.Config{SampleRate: format.SampleRate, FrameSizeMs: format.FrameMs})
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("app: vad session: %w", err)
	}
	e.closers = append(e.closers, vadSess.Close)

	if d.dialer == nil {
		dialer, err := newDialer(ec)
		if err != nil {
			e.Close()
			return nil, err
		}
		if c, ok := dialer.(io.Closer); ok {
			e.closers = append(e.closers, c.Close)
		}
		d.dialer = dialer
	}

	// A spotter that decides late needs that much idle audio kept so the
	// utterance can start at the real wake frame.
	var history int
	if l, ok := d.spotter.(interface{ MaxLag() int }); ok {
		history = l.MaxLag()
	}

	e.runner, err = capture.NewRunner(capture.Config{
		Format: format,
		Segmenter: capture.SegmenterConfig{
			PrerollFrames:  ec.PrerollFrames,
			HangoverFrames: ec.HangoverFrames,
			MaxFrames:      ec.MaxUtteranceFrames,
		},
		Retry: resilience.RetryConfig{
			InitialBackoff: ec.Retry.InitialBackoff,
			MaxBackoff:     ec.Retry.MaxBackoff,
			MaxAttempts:    ec.Retry.MaxAttempts,
		},
		ReceiptTimeout: ec.ReceiptTimeout,
		WakeHistory:    history,
	}, d.open, d.spotter, vadSess, d.dialer, capture.WithMetrics(d.metrics))
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("app: %w", err)
	}
	return e, nil
}

// newSpotter builds the phonetic spotter. A base_url selects a whisper
// server for the keyword transcripts; otherwise model is loaded in-process.
func (e *Edge) newSpotter(entry config.ProviderEntry, format audio.Format) (wakeword.Spotter, error) {
	if entry.Name != "phonetic" {
		return nil, fmt.Errorf("app: unsupported wakeword provider %q", entry.Name)
	}
	lang := entry.OptionString("language", "en")

	var tr stt.Transcriber
	if entry.BaseURL != "" {
		p, err := whisper.New(entry.BaseURL, whisper.WithLanguage(lang), whisper.WithSampleRate(format.SampleRate))
		if err != nil {
			return nil, fmt.Errorf("app: wakeword transcriber: %w", err)
		}
		tr = p
	} else {
		p, err := whisper.NewNative(entry.Model, whisper.WithNativeLanguage(lang), whisper.WithNativeSampleRate(format.SampleRate))
		if err != nil {
			return nil, fmt.Errorf("app: wakeword transcriber: %w", err)
		}
		e.closers = append(e.closers, p.Close)
		tr = p
	}

	s, err := phonetic.New(tr, format,
		entry.OptionString("keyphrase", DefaultWakePhrase),
		phonetic.WithThreshold(entry.OptionFloat("threshold", DefaultWakeThreshold)),
	)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	e.closers = append(e.closers, s.Close)
	return s, nil
}

func newDialer(ec config.EdgeConfig) (transport.Dialer, error) {
	switch ec.Transport {
	case config.TransportWebSocket:
		return wsstream.NewDialer(ec.Server), nil
	case config.TransportGRPC, "":
		d, err := grpcstream.Dial(ec.Server)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("app: unknown transport %q", ec.Transport)
	}
}

// Run captures until ctx is cancelled or the source ends.
func (e *Edge) Run(ctx context.Context) error {
	return e.runner.Run(ctx)
}

// Close releases the spotter, transcriber, VAD session and transport in
// reverse order of construction.
func (e *Edge) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
