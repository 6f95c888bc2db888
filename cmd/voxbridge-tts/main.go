// Command voxbridge-tts serves speech synthesis over HTTP on POST /api/tts.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrWong99/voxbridge/internal/app"
	"github.com/MrWong99/voxbridge/internal/observe"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags, err := app.ParseFlags("voxbridge-tts", os.Args[1:])
	if err != nil {
		return 2
	}
	cfg, err := flags.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxbridge-tts: config file %q not found\n", flags.ConfigPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxbridge-tts: %v\n", err)
		}
		return 1
	}
	slog.SetDefault(app.NewLogger(cfg.Server.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voxbridge-tts"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "error", err)
		return 1
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	srv, err := app.NewTTSServer(cfg, app.NewRegistry())
	if err != nil {
		slog.Error("failed to initialise tts server", "error", err)
		return 1
	}
	slog.Info("voxbridge-tts starting", "listen", cfg.TTSServer.Listen, "backend", cfg.Providers.TTSBackend.Name)
	if err := srv.Run(ctx); err != nil {
		slog.Error("run error", "error", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}
