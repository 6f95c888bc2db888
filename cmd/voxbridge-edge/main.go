// Command voxbridge-edge runs on the capture device. It listens for the wake
// phrase, records the following command and streams it to the brain.
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
	flags, err := app.ParseFlags("voxbridge-edge", os.Args[1:])
	if err != nil {
		return 2
	}
	cfg, err := flags.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxbridge-edge: config file %q not found\n", flags.ConfigPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxbridge-edge: %v\n", err)
		}
		return 1
	}
	slog.SetDefault(app.NewLogger(cfg.Server.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voxbridge-edge"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "error", err)
		return 1
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	edge, err := app.NewEdge(cfg, app.NewRegistry())
	if err != nil {
		slog.Error("failed to initialise edge", "error", err)
		return 1
	}
	defer func() {
		if err := edge.Close(); err != nil {
			slog.Warn("edge close", "error", err)
		}
	}()

	slog.Info("voxbridge-edge listening for wake phrase",
		"server", cfg.Edge.Server,
		"transport", cfg.Edge.Transport,
		"input_device", cfg.Edge.InputDevice,
		"sample_rate", cfg.Edge.SampleRate,
	)
	if err := edge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "error", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}
