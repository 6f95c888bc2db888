// Package app wires the voxbridge processes together. It owns the lifecycle
// of every long-lived component: construction from configuration, the serve
// loop and the ordered shutdown.
//
// Three process shapes are built here:
//   - [Brain] accepts audio streams, transcribes them and runs skills
//   - [Edge] captures the microphone and streams wake-triggered utterances
//   - [TTSServer] exposes a synthesis backend over HTTP
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxbridge/internal/config"
	"github.com/MrWong99/voxbridge/internal/dispatch"
	"github.com/MrWong99/voxbridge/internal/health"
	"github.com/MrWong99/voxbridge/internal/intent"
	"github.com/MrWong99/voxbridge/internal/inventory"
	"github.com/MrWong99/voxbridge/internal/inventory/mysql"
	"github.com/MrWong99/voxbridge/internal/inventory/postgres"
	"github.com/MrWong99/voxbridge/internal/observe"
	"github.com/MrWong99/voxbridge/internal/render"
	"github.com/MrWong99/voxbridge/internal/skill"
	"github.com/MrWong99/voxbridge/internal/transport/grpcstream"
	"github.com/MrWong99/voxbridge/internal/transport/wsstream"
	"github.com/MrWong99/voxbridge/pkg/audio/portaudio"
	"github.com/MrWong99/voxbridge/pkg/provider/stt"
)

// PlayerPortAudio selects in-process playback instead of an external command.
const PlayerPortAudio = "portaudio"

// Brain is the central service: stream servers in front of the dispatcher.
type Brain struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics

	store      inventory.Store
	player     render.Player
	grpcLis    net.Listener
	dispatcher *dispatch.Dispatcher
	grpcSrv    *grpcstream.Server
	wsSrv      *http.Server
	adminSrv   *http.Server

	// closers run in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// BrainOption configures a [Brain].
type BrainOption func(*Brain)

// WithStore injects the inventory store instead of opening the configured
// driver. The Brain takes ownership and closes it on Shutdown.
func WithStore(s inventory.Store) BrainOption {
	return func(b *Brain) { b.store = s }
}

// WithPlayer replaces the configured playback device.
func WithPlayer(p render.Player) BrainOption {
	return func(b *Brain) { b.player = p }
}

// WithGRPCListener serves the stream RPC on lis instead of listening on
// brain.listen.
func WithGRPCListener(lis net.Listener) BrainOption {
	return func(b *Brain) { b.grpcLis = lis }
}

// WithMetrics sets the metrics recorder. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) BrainOption {
	return func(b *Brain) { b.metrics = m }
}

// NewBrain builds the brain from cfg and the already-constructed providers.
func NewBrain(ctx context.Context, cfg *config.Config, providers *Providers, opts ...BrainOption) (*Brain, error) {
	if providers == nil || providers.STT == nil || providers.TTS == nil {
		return nil, errors.New("app: brain needs stt and tts providers")
	}
	b := &Brain{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(b)
	}
	if b.metrics == nil {
		b.metrics = observe.DefaultMetrics()
	}

	if b.store == nil {
		store, err := OpenStore(ctx, cfg.Inventory)
		if err != nil {
			return nil, err
		}
		b.store = store
	}
	if c, ok := providers.STT.(io.Closer); ok {
		b.closers = append(b.closers, c.Close)
	}
	b.closers = append(b.closers, b.store.Close)

	// ---- skills ----
	skills := []skill.Skill{
		&skill.Add{Store: b.store},
		&skill.Query{Store: b.store},
		&skill.Telemetry{Path: cfg.Brain.ThermalZone},
	}
	if providers.LLM != nil {
		skills = append(skills, &skill.Conversation{
			Model:   providers.LLM,
			History: skill.NewHistory(cfg.Brain.HistoryLimit),
			Timeout: cfg.Brain.LocalTimeout,
		})
	} else {
		slog.Warn("app: no local llm configured, conversational skill disabled")
	}
	if providers.Cloud != nil {
		skills = append(skills, &skill.Cloud{Model: providers.Cloud, Timeout: cfg.Brain.CloudTimeout})
	} else {
		slog.Warn("app: no cloud llm configured, cloud fallback skill disabled")
	}
	exec, err := skill.NewExecutor(skills, skill.WithMetrics(b.metrics))
	if err != nil {
		b.closeAll()
		return nil, fmt.Errorf("app: %w", err)
	}

	// ---- response ----
	if b.player == nil {
		b.player = newPlayer(cfg.Brain)
	}
	renderOpts := []render.Option{render.WithMetrics(b.metrics)}
	if cfg.Brain.AckSound != "" {
		renderOpts = append(renderOpts, render.WithCue(cfg.Brain.AckSound))
	}
	speaker := render.New(providers.TTS, b.player, renderOpts...)

	b.dispatcher = dispatch.New(dispatch.Config{
		MaxSessions: int64(cfg.Brain.MaxSessions),
		STT:         stt.StreamConfig{SampleRate: cfg.Edge.SampleRate, Language: cfg.Brain.Language},
	}, providers.STT, intent.Default(), exec, speaker, dispatch.WithMetrics(b.metrics))

	// ---- servers ----
	b.grpcSrv = grpcstream.NewServer(b.dispatcher)
	if cfg.Brain.WSListen != "" {
		mux := http.NewServeMux()
		mux.Handle(wsstream.Path, wsstream.NewHandler(b.dispatcher))
		b.wsSrv = &http.Server{Addr: cfg.Brain.WSListen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	}
	if cfg.Brain.AdminListen != "" {
		b.adminSrv = &http.Server{Addr: cfg.Brain.AdminListen, Handler: b.AdminHandler(), ReadHeaderTimeout: 10 * time.Second}
	}
	return b, nil
}

func newPlayer(cfg config.BrainConfig) render.Player {
	if cfg.Player == PlayerPortAudio {
		return portaudio.NewPlayer()
	}
	return &render.CommandPlayer{Command: cfg.Player, Args: cfg.PlayerArgs}
}

// OpenStore connects the configured inventory driver.
func OpenStore(ctx context.Context, cfg config.InventoryConfig) (inventory.Store, error) {
	switch cfg.Driver {
	case config.InventoryMemory, "":
		return inventory.NewMemory(), nil
	case config.InventoryPostgres:
		s, err := postgres.Open(ctx, cfg.DSN, cfg.Migrate)
		if err != nil {
			return nil, fmt.Errorf("app: open inventory: %w", err)
		}
		return s, nil
	case config.InventoryMySQL:
		s, err := mysql.Open(ctx, cfg.DSN, cfg.Migrate)
		if err != nil {
			return nil, fmt.Errorf("app: open inventory: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("app: unknown inventory driver %q", cfg.Driver)
	}
}

// Dispatcher exposes the session dispatcher.
func (b *Brain) Dispatcher() *dispatch.Dispatcher { return b.dispatcher }

// AdminHandler serves /healthz, /readyz and /metrics.
func (b *Brain) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	health.New(
		health.Ping("inventory", b.store),
		health.Draining("dispatcher", b.dispatcher.Draining),
	).Register(mux)
	mux.Handle("GET /metrics", observe.Handler())
	return observe.Middleware(b.metrics)(mux)
}

// Run serves until ctx is cancelled or a server fails, then stops accepting
// and drains in-flight sessions within brain.shutdown_timeout.
func (b *Brain) Run(ctx context.Context) error {
	lis := b.grpcLis
	if lis == nil {
		var err error
		if lis, err = net.Listen("tcp", b.cfg.Brain.Listen); err != nil {
			return fmt.Errorf("app: listen %s: %w", b.cfg.Brain.Listen, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.grpcSrv.Serve(lis) })
	for _, srv := range []*http.Server{b.wsSrv, b.adminSrv} {
		if srv == nil {
			continue
		}
		g.Go(func() error {
			slog.Info("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		b.stop()
		return nil
	})

	slog.Info("brain ready", "listen", lis.Addr().String(), "ws_listen", b.cfg.Brain.WSListen, "admin_listen", b.cfg.Brain.AdminListen)
	return g.Wait()
}

// stop closes the listeners and waits for in-flight sessions. Sessions still
// running when the drain deadline passes are cancelled by a hard stop.
func (b *Brain) stop() {
	b.stopOnce.Do(func() {
		timeout := b.cfg.Brain.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		slog.Info("brain draining", "timeout", timeout)
		stopped := make(chan struct{})
		go func() {
			b.grpcSrv.GracefulStop()
			close(stopped)
		}()
		for _, srv := range []*http.Server{b.wsSrv, b.adminSrv} {
			if srv == nil {
				continue
			}
			if err := srv.Shutdown(ctx); err != nil {
				slog.Warn("app: http shutdown", "addr", srv.Addr, "error", err)
			}
		}
		if err := b.dispatcher.Close(ctx); err != nil {
			slog.Warn("app: sessions still running at drain deadline", "error", err)
			b.grpcSrv.Stop()
		}
		<-stopped
	})
}

// Shutdown releases the store and providers. Call it after Run returns.
func (b *Brain) Shutdown(ctx context.Context) error {
	b.stop()
	done := make(chan error, 1)
	go func() { done <- b.closeAll() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("app: shutdown: %w", ctx.Err())
	}
}

func (b *Brain) closeAll() error {
	closers := b.closers
	b.closers = nil
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
