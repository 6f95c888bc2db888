// Command voxbridge-brain is the central service. It accepts audio streams
// from edge devices, transcribes them, runs the matching skill and speaks the
// reply.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/voxbridge/internal/app"
	"github.com/MrWong99/voxbridge/internal/observe"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags, err := app.ParseFlags("voxbridge-brain", os.Args[1:])
	if err != nil {
		return 2
	}
	cfg, err := flags.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxbridge-brain: config file %q not found\n", flags.ConfigPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxbridge-brain: %v\n", err)
		}
		return 1
	}
	slog.SetDefault(app.NewLogger(cfg.Server.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voxbridge-brain"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "error", err)
		return 1
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	providers, err := app.BuildProviders(cfg, app.NewRegistry())
	if err != nil {
		slog.Error("failed to build providers", "error", err)
		return 1
	}
	slog.Info("voxbridge-brain starting",
		"config", flags.ConfigPath,
		"listen", cfg.Brain.Listen,
		"stt", cfg.Providers.STT.Name,
		"tts", cfg.Providers.TTS.Name,
		"llm", cfg.Providers.LLM.Name,
		"cloud", cfg.Providers.Cloud.Name,
		"inventory", cfg.Inventory.Driver,
	)

	brain, err := app.NewBrain(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise brain", "error", err)
		return 1
	}

	code := 0
	if err := brain.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "error", err)
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := brain.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return 1
	}
	slog.Info("goodbye")
	return code
}
