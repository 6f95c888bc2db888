// Package capture is the edge side of the pipeline: a single loop that reads
// microphone frames, scans them for the wake phrase, segments the following
// command with voice activity detection and streams it to the brain.
//
// Sessions are strictly sequential. The loop performs one blocking frame read
// at a time and streams inline, so a second wake trigger cannot overlap a
// session in progress.
//
// Failure policy:
//   - capture device errors close the device and reopen it with bounded
//     exponential backoff; an exhausted episode is reported and followed by a
//     cool-down before the next episode
//   - stream errors abandon the session and reset the gate and segmenter;
//     there is no retry within a session
//   - spotter and VAD errors are logged and the frame is treated as
//     non-triggering silence
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MrWong99/voxbridge/internal/fault"
	"github.com/MrWong99/voxbridge/internal/observe"
	"github.com/MrWong99/voxbridge/internal/resilience"
	"github.com/MrWong99/voxbridge/internal/session"
	"github.com/MrWong99/voxbridge/internal/transport"
	"github.com/MrWong99/voxbridge/pkg/audio"
	"github.com/MrWong99/voxbridge/pkg/provider/vad"
	"github.com/MrWong99/voxbridge/pkg/provider/wakeword"
)

// Utterance outcomes recorded in metrics and session logs.
const (
	OutcomeStreamed       = "streamed"
	OutcomeAbandoned      = "abandoned"
	OutcomeTransportError = "transport_error"
	OutcomeDeviceError    = "device_error"
	OutcomeInterrupted    = "interrupted"
)

// Config holds the capture loop parameters.
type Config struct {
	Format    audio.Format
	Segmenter SegmenterConfig

	// Retry bounds one device reopen episode. Its MaxBackoff is also the
	// cool-down between exhausted episodes.
	Retry resilience.RetryConfig

	// ReceiptTimeout bounds the wait for the brain's receipt after
	// half-close. Zero waits until the loop's context ends.
	ReceiptTimeout time.Duration

	// WakeHistory is how many idle frames are kept, already classified by
	// the VAD, for spotters that report a trigger late. Zero keeps none and
	// classifies only frames after the trigger.
	WakeHistory int
}

// Option configures a [Runner].
type Option func(*Runner)

// WithMetrics records utterance outcomes and device retries on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// Runner is the edge capture loop. Run must not be called concurrently.
type Runner struct {
	cfg     Config
	open    audio.SourceOpener
	gate    *Gate
	vad     vad.SessionHandle
	seg     *Segmenter
	hist    *history
	dialer  transport.Dialer
	metrics *observe.Metrics

	sess   *session.Session
	stream transport.Stream
}

// NewRunner wires a capture loop. open is called at start and after every
// device failure.
func NewRunner(cfg Config, open audio.SourceOpener, spotter wakeword.Spotter, vadSess vad.SessionHandle, dialer transport.Dialer, opts ...Option) (*Runner, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	seg, err := NewSegmenter(cfg.Segmenter)
	if err != nil {
		return nil, err
	}
	if open == nil || spotter == nil || vadSess == nil || dialer == nil {
		return nil, errors.New("capture: source opener, spotter, vad session and dialer are required")
	}
	cfg.Segmenter = seg.Config()
	cfg.Retry = cfg.Retry.WithDefaults()
	if cfg.Retry.Name == "" {
		cfg.Retry.Name = "capture device"
	}
	r := &Runner{
		cfg:    cfg,
		open:   open,
		gate:   NewGate(spotter),
		vad:    vadSess,
		seg:    seg,
		hist:   newHistory(cfg.WakeHistory),
		dialer: dialer,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Run captures until ctx ends or the source reports io.EOF. Device failures
// never end the loop.
func (r *Runner) Run(ctx context.Context) error {
	defer func() {
		if r.sess != nil {
			r.abandon(context.WithoutCancel(ctx), OutcomeInterrupted, nil)
		}
		_ = r.gate.Disarm()
	}()

	retry := r.cfg.Retry
	retry.OnRetry = func(int, error) {
		if r.metrics != nil {
			r.metrics.RecordDeviceRetry(ctx)
		}
	}

	for {
		src, err := resilience.Retry(ctx, retry, func(ctx context.Context) (audio.Source, error) {
			src, err := r.open(ctx)
			if err != nil && !fault.Is(err, fault.KindDeviceIO) {
				err = fault.DeviceIO("open source", err)
			}
			return src, err
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			slog.Error("capture: device unavailable, cooling down",
				"error", err,
				"cooldown", retry.MaxBackoff)
			if resilience.Sleep(ctx, retry.MaxBackoff) != nil {
				return nil
			}
			continue
		}

		slog.Info("capture: source open", "sample_rate", r.cfg.Format.SampleRate, "frame_ms", r.cfg.Format.FrameMs)
		err = r.capture(ctx, src)
		if cerr := src.Close(); cerr != nil {
			slog.Warn("capture: close source", "error", cerr)
		}
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, io.EOF):
			slog.Info("capture: source ended")
			return nil
		default:
			slog.Warn("capture: device failed, reopening", "error", err)
			if r.sess != nil {
				r.abandon(ctx, OutcomeDeviceError, err)
			} else {
				r.seg.Reset()
				r.hist.reset()
			}
		}
	}
}

// capture reads frames until the source fails. The returned error is io.EOF,
// ctx.Err or a device fault.
func (r *Runner) capture(ctx context.Context, src audio.Source) error {
	for {
		fr, err := src.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			if !fault.Is(err, fault.KindDeviceIO) {
				err = fault.DeviceIO("read frame", err)
			}
			return err
		}
		if err := r.cfg.Format.Check(fr); err != nil {
			return fault.DeviceIO("read frame", err)
		}
		r.step(ctx, fr)
	}
}

// step classifies one frame and feeds the segmenter. While idle the frame
// goes to the wake gate first; a late trigger replays the kept frames from
// the one where the keyphrase ended.
func (r *Runner) step(ctx context.Context, fr audio.Frame) {
	in := Input{Frame: fr}
	idle := r.seg.Phase() == PhaseIdle
	if !idle || r.hist.enabled() {
		in.Speech = r.classify(fr)
	}
	if !idle {
		r.feed(ctx, in)
		return
	}

	if !r.gate.Armed() {
		if err := r.gate.Arm(); err != nil {
			slog.Warn("capture: arm wake gate", "error", err)
		}
	}
	hit, err := r.gate.Process(fr.Data)
	if err != nil {
		slog.Warn("capture: wake gate", "seq", fr.Seq, "error", err)
	}
	if !hit {
		r.hist.push(in)
		return
	}

	behind := r.gate.Behind()
	replay := append(r.hist.last(behind), in)
	r.hist.reset()
	if len(replay) <= behind {
		slog.Warn("capture: wake trigger predates kept audio, utterance start clipped",
			"seq", fr.Seq,
			"behind", behind,
			"kept", len(replay)-1)
	}
	replay[0].Wake = true
	for _, x := range replay {
		r.feed(ctx, x)
	}
}

// classify runs the VAD on one frame. Errors count as silence.
func (r *Runner) classify(fr audio.Frame) bool {
	ev, err := r.vad.ProcessFrame(fr.Data)
	if err != nil {
		slog.Warn("capture: vad", "seq", fr.Seq, "error", err)
		return false
	}
	return ev.IsSpeech()
}

// feed advances the segmenter by one input and acts on the emission.
func (r *Runner) feed(ctx context.Context, in Input) {
	em := r.seg.Feed(in)
	if em.Woke {
		r.sess = session.New(session.Capturing)
		r.sess.Logger().Info("wake phrase detected", "seq", in.Frame.Seq)
	}
	if em.Abandon {
		r.abandon(ctx, OutcomeAbandoned, nil)
		return
	}
	if len(em.Frames) > 0 {
		if err := r.send(ctx, em.Frames); err != nil {
			r.abandon(ctx, OutcomeTransportError, err)
			return
		}
	}
	if em.End {
		r.complete(ctx)
	}
}

// send opens the stream on the first emission and forwards frames in order.
func (r *Runner) send(ctx context.Context, frames []audio.Frame) error {
	if r.stream == nil {
		if err := r.sess.Transition(session.Streaming); err != nil {
			return err
		}
		st, err := r.dialer.Open(ctx)
		if err != nil {
			return err
		}
		r.stream = st
	}
	for _, f := range frames {
		if err := r.stream.Send(ctx, f.Data); err != nil {
			return err
		}
	}
	return nil
}

// complete half-closes the stream and waits for the receipt.
func (r *Runner) complete(ctx context.Context) {
	rctx := ctx
	if r.cfg.ReceiptTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, r.cfg.ReceiptTimeout)
		defer cancel()
	}
	msg, err := r.stream.CloseAndRecv(rctx)
	if err != nil {
		r.abandon(ctx, OutcomeTransportError, err)
		return
	}
	r.sess.Logger().Info("utterance delivered", "receipt", msg)
	r.sess.Finish(OutcomeStreamed)
	r.record(ctx, OutcomeStreamed)
	r.sess, r.stream = nil, nil
	r.vad.Reset()
}

// abandon drops the current session and resets every stage so the next wake
// trigger starts from scratch.
func (r *Runner) abandon(ctx context.Context, outcome string, cause error) {
	if r.stream != nil {
		r.stream.Abort()
		r.stream = nil
	}
	r.seg.Reset()
	r.hist.reset()
	r.vad.Reset()
	if err := r.gate.Disarm(); err != nil {
		slog.Warn("capture: disarm wake gate", "error", err)
	}
	if r.sess != nil {
		if cause != nil {
			r.sess.Logger().Warn("session abandoned",
				"kind", fault.KindOf(cause).String(),
				"error", cause)
		}
		r.sess.Finish(outcome)
		r.sess = nil
	}
	if cause != nil && r.metrics != nil {
		r.metrics.RecordError(ctx, fault.KindOf(cause).String(), "capture")
	}
	r.record(ctx, outcome)
}

func (r *Runner) record(ctx context.Context, outcome string) {
	if r.metrics != nil {
		r.metrics.RecordUtterance(ctx, outcome)
	}
}
