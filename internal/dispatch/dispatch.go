// Package dispatch runs the brain side of a session: it accepts one audio
// stream, transcribes it, routes the transcript to a skill and speaks the
// result.
//
// A Dispatcher implements transport.Handler and is shared by every transport
// binding. Concurrent sessions are bounded by a weighted semaphore; a stream
// that finds every slot taken waits until one frees up or its context ends.
package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/voxbridge/internal/fault"
	"github.com/MrWong99/voxbridge/internal/intent"
	"github.com/MrWong99/voxbridge/internal/observe"
	"github.com/MrWong99/voxbridge/internal/session"
	"github.com/MrWong99/voxbridge/internal/skill"
	"github.com/MrWong99/voxbridge/internal/transport"
	"github.com/MrWong99/voxbridge/pkg/provider/stt"
)

// DefaultMaxSessions bounds concurrent sessions when Config leaves it zero.
const DefaultMaxSessions = 10

// ReplyNotHeard is spoken when the transcript is empty.
const ReplyNotHeard = "I didn't catch that."

// ErrDraining is returned for streams arriving after Close started.
var ErrDraining = errors.New("dispatch: dispatcher is draining")

// Session outcomes recorded in metrics and logs.
const (
	OutcomeCompleted = "completed"
	OutcomeNotHeard  = "not_heard"
	OutcomeAbandoned = "abandoned"
	OutcomeRejected  = "rejected"
)

// Router classifies a transcript. *intent.Router satisfies it.
type Router interface {
	Route(transcript string) intent.Intent
}

// Executor runs the skill an intent names. *skill.Executor satisfies it.
type Executor interface {
	Execute(ctx context.Context, in intent.Intent) skill.Result
}

// Speaker renders response text and the acknowledgement cue.
// *render.Renderer satisfies it.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	PlayCue(ctx context.Context) error
}

// Config holds the dispatcher settings.
type Config struct {
	// MaxSessions bounds concurrent sessions. Zero selects DefaultMaxSessions.
	MaxSessions int64

	// STT is passed to every transcription session.
	STT stt.StreamConfig
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics records sessions, transcription latency and errors.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher owns every session from stream accept to response completion.
type Dispatcher struct {
	cfg     Config
	stt     stt.Provider
	router  Router
	exec    Executor
	speaker Speaker
	metrics *observe.Metrics

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu       sync.Mutex
	draining bool
}

var _ transport.Handler = (*Dispatcher)(nil)

// New returns a Dispatcher.
func New(cfg Config, sttp stt.Provider, router Router, exec Executor, speaker Speaker, opts ...Option) *Dispatcher {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	d := &Dispatcher{
		cfg:     cfg,
		stt:     sttp,
		router:  router,
		exec:    exec,
		speaker: speaker,
		sem:     semaphore.NewWeighted(cfg.MaxSessions),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// HandleStream implements transport.Handler. It returns transport.StatusOK
// for every session that reached the response stage, including empty
// transcripts and failed skills. Only stream failures return an error.
func (d *Dispatcher) HandleStream(ctx context.Context, chunks transport.ChunkReader) (string, error) {
	if !d.enter() {
		d.recordSession(ctx, OutcomeRejected, 0)
		return "", fault.StreamTransport("accept", ErrDraining)
	}
	defer d.wg.Done()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.recordSession(ctx, OutcomeRejected, 0)
		return "", fault.StreamTransport("wait for session slot", err)
	}
	defer d.sem.Release(1)

	if d.metrics != nil {
		d.metrics.AddActiveSessions(ctx, 1)
		defer d.metrics.AddActiveSessions(context.WithoutCancel(ctx), -1)
	}

	sess := session.New(session.Streaming)
	ctx = observe.WithSessionID(ctx, sess.ID())
	ctx, span := observe.StartSpan(ctx, "dispatch.session")
	defer span.End()
	log := sess.Logger()
	log.Info("stream accepted")

	transcript, err := d.transcribe(ctx, sess, chunks)
	if err != nil {
		d.finish(ctx, sess, OutcomeAbandoned)
		log.Warn("stream abandoned", "error", err)
		if d.metrics != nil {
			d.metrics.RecordError(ctx, fault.KindOf(err).String(), "stream")
		}
		return "", err
	}

	if err := d.speaker.PlayCue(ctx); err != nil {
		log.Warn("ack cue failed", "error", err)
	}

	reply, outcome := ReplyNotHeard, OutcomeNotHeard
	if strings.TrimSpace(transcript) != "" {
		log.Info("heard command", "transcript", transcript)
		d.transition(sess, session.Dispatching)
		in := d.router.Route(transcript)
		res := d.exec.Execute(ctx, in)
		reply, outcome = res.Text, OutcomeCompleted
		log.Info("skill replied", "skill", in.Skill, "reply", reply)
	}

	d.transition(sess, session.Responding)
	if err := d.speaker.Speak(ctx, reply); err != nil {
		log.Error("response rendering failed", "error", err)
		if d.metrics != nil {
			d.metrics.RecordError(ctx, fault.KindOf(err).String(), "render")
		}
	}
	d.finish(ctx, sess, outcome)
	return transport.StatusOK, nil
}

// transcribe feeds every chunk into one STT session and returns its single
// transcript. STT failures are logged and yield an empty transcript; stream
// failures are returned.
func (d *Dispatcher) transcribe(ctx context.Context, sess *session.Session, chunks transport.ChunkReader) (string, error) {
	log := sess.Logger()

	h, err := d.stt.StartStream(ctx, d.cfg.STT)
	if err != nil {
		log.Error("stt start failed", "error", err)
		d.recordErr(ctx, fault.ExternalService("stt start", err), "stt")
		h = nil
	}
	defer func() {
		if h != nil {
			_ = h.Close()
		}
	}()

	var n int
	for {
		chunk, err := chunks.Recv(ctx)
		if err != nil {
			// A transport fault ends the session even when its cause
			// unwraps to io.EOF; only a bare io.EOF is a half-close.
			if fault.Is(err, fault.KindStreamTransport) {
				return "", err
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fault.StreamTransport("recv chunk", err)
		}
		n++
		if h == nil {
			continue
		}
		if err := h.SendAudio(chunk); err != nil {
			log.Error("stt feed failed", "chunk", n, "error", err)
			d.recordErr(ctx, fault.ExternalService("stt send", err), "stt")
			_ = h.Close()
			h = nil
		}
	}
	log.Debug("stream half-closed", "chunks", n)

	d.transition(sess, session.Transcribing)
	if h == nil {
		return "", nil
	}
	start := time.Now()
	text, err := h.Finalize(ctx)
	if d.metrics != nil {
		d.metrics.RecordSTT(ctx, time.Since(start))
	}
	if err != nil {
		log.Error("stt finalize failed", "error", err)
		d.recordErr(ctx, fault.ExternalService("stt finalize", err), "stt")
		return "", nil
	}
	return text, nil
}

// Close stops admitting streams and waits for in-flight sessions or ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.draining = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Draining reports whether Close has been called.
func (d *Dispatcher) Draining() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draining
}

func (d *Dispatcher) enter() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draining {
		return false
	}
	d.wg.Add(1)
	return true
}

func (d *Dispatcher) transition(sess *session.Session, to session.State) {
	if err := sess.Transition(to); err != nil {
		sess.Logger().Warn("session transition", "error", err)
	}
}

func (d *Dispatcher) finish(ctx context.Context, sess *session.Session, outcome string) {
	if sess.Finish(outcome) {
		d.recordSession(ctx, outcome, sess.Age())
	}
}

func (d *Dispatcher) recordSession(ctx context.Context, outcome string, age time.Duration) {
	if d.metrics != nil {
		d.metrics.RecordSession(context.WithoutCancel(ctx), outcome, age)
	}
	if outcome == OutcomeRejected {
		slog.Warn("stream rejected")
	}
}

func (d *Dispatcher) recordErr(ctx context.Context, err error, op string) {
	if d.metrics != nil {
		d.metrics.RecordError(ctx, fault.KindOf(err).String(), op)
	}
}
