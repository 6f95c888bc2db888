package app_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/voxbridge/internal/app"
	"github.com/MrWong99/voxbridge/internal/config"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()
	f, err := app.ParseFlags("voxbridge-brain", []string{"-c", "/etc/voxbridge.yaml", "--log-level", "debug"})
	if err != nil {
		t.Fatalf("ParseFlags() error: %v", err)
	}
	if f.ConfigPath != "/etc/voxbridge.yaml" || f.LogLevel != "debug" || f.EnvFile != ".env" {
		t.Errorf("flags = %+v", f)
	}
	if _, err := app.ParseFlags("voxbridge-brain", []string{"--bogus"}); err == nil {
		t.Error("unknown flag expected error, got nil")
	}
}

func TestFlags_Load(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("brain:\n  max_sessions: 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	f := &app.Flags{ConfigPath: path, EnvFile: filepath.Join(dir, "missing.env"), LogLevel: "warn"}
	cfg, err := f.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Brain.MaxSessions != 3 {
		t.Errorf("max_sessions = %d, want 3", cfg.Brain.MaxSessions)
	}
	if cfg.Server.LogLevel != config.LogWarn {
		t.Errorf("log level = %q, want warn", cfg.Server.LogLevel)
	}

	f.LogLevel = "loud"
	if _, err := f.Load(); err == nil {
		t.Error("invalid log level expected error, got nil")
	}
	f.LogLevel, f.ConfigPath = "", filepath.Join(dir, "absent.yaml")
	if _, err := f.Load(); err == nil {
		t.Error("missing config expected error, got nil")
	}
}

func TestNewLogger_Levels(t *testing.T) {
	t.Parallel()
	tests := []struct {
		level config.LogLevel
		debug bool
		info  bool
		warn  bool
	}{
		{config.LogDebug, true, true, true},
		{config.LogInfo, false, true, true},
		{config.LogWarn, false, false, true},
		{config.LogError, false, false, false},
	}
	ctx := context.Background()
	for _, tt := range tests {
		l := app.NewLogger(tt.level)
		if got := l.Enabled(ctx, slog.LevelDebug); got != tt.debug {
			t.Errorf("%s: debug enabled = %v", tt.level, got)
		}
		if got := l.Enabled(ctx, slog.LevelInfo); got != tt.info {
			t.Errorf("%s: info enabled = %v", tt.level, got)
		}
		if got := l.Enabled(ctx, slog.LevelWarn); got != tt.warn {
			t.Errorf("%s: warn enabled = %v", tt.level, got)
		}
	}
}
