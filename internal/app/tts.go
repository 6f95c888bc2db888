package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/MrWong99/voxbridge/internal/config"
	"github.com/MrWong99/voxbridge/internal/observe"
	"github.com/MrWong99/voxbridge/internal/ttsserver"
	"github.com/MrWong99/voxbridge/pkg/provider/tts"
)

// ttsShutdownTimeout bounds the drain of in-flight synthesis requests.
const ttsShutdownTimeout = 10 * time.Second

// TTSServer exposes one synthesis backend on POST /api/tts.
type TTSServer struct {
	srv     *http.Server
	lis     net.Listener
	handler http.Handler
}

type ttsDeps struct {
	backend tts.Provider
	lis     net.Listener
	metrics *observe.Metrics
}

// TTSOption configures a [TTSServer].
type TTSOption func(*ttsDeps)

// WithBackend replaces the registry backend.
func WithBackend(p tts.Provider) TTSOption {
	return func(d *ttsDeps) { d.backend = p }
}

// WithTTSListener serves on lis instead of listening on tts_server.listen.
func WithTTSListener(lis net.Listener) TTSOption {
	return func(d *ttsDeps) { d.lis = lis }
}

// WithTTSMetrics sets the metrics recorder. Defaults to [observe.DefaultMetrics].
func WithTTSMetrics(m *observe.Metrics) TTSOption {
	return func(d *ttsDeps) { d.metrics = m }
}

// NewTTSServer builds the synthesis server using providers.tts_backend.
func NewTTSServer(cfg *config.Config, reg *config.Registry, opts ...TTSOption) (*TTSServer, error) {
	d := &ttsDeps{}
	for _, o := range opts {
		o(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	name := cfg.Providers.TTSBackend.Name
	if d.backend == nil {
		p, err := reg.CreateTTS(cfg.Providers.TTSBackend)
		if err != nil {
			return nil, fmt.Errorf("app: create tts backend: %w", err)
		}
		d.backend = p
	}
	if name == "" {
		name = "custom"
	}

	mux := ttsserver.New(d.backend, ttsserver.WithMetrics(d.metrics), ttsserver.WithBackendName(name)).Mux()
	mux.Handle("GET /metrics", observe.Handler())
	h := observe.Middleware(d.metrics)(mux)
	return &TTSServer{
		handler: h,
		lis:     d.lis,
		srv:     &http.Server{Addr: cfg.TTSServer.Listen, Handler: h, ReadHeaderTimeout: 10 * time.Second},
	}, nil
}

// Handler returns the server's HTTP handler.
func (s *TTSServer) Handler() http.Handler { return s.handler }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *TTSServer) Run(ctx context.Context) error {
	lis := s.lis
	if lis == nil {
		var err error
		if lis, err = net.Listen("tcp", s.srv.Addr); err != nil {
			return fmt.Errorf("app: listen %s: %w", s.srv.Addr, err)
		}
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("tts server listening", "addr", lis.Addr().String())
		errc <- s.srv.Serve(lis)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("app: serve tts: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ttsShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: shutdown tts: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("app: serve tts: %w", err)
	}
	return nil
}
