package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/MrWong99/voxbridge/internal/config"
)

// Flags are the command-line options shared by every voxbridge binary.
type Flags struct {
	ConfigPath string
	EnvFile    string
	LogLevel   string
}

// ParseFlags parses args (without the program name) for the binary called
// name.
func ParseFlags(name string, args []string) (*Flags, error) {
	f := &Flags{}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVarP(&f.ConfigPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	fs.StringVar(&f.EnvFile, "env-file", ".env", "optional dotenv file loaded before the config is expanded")
	fs.StringVar(&f.LogLevel, "log-level", "", "override server.log_level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// Load reads the env file and the configuration, applying the log level
// override.
func (f *Flags) Load() (*config.Config, error) {
	if err := config.LoadEnv(f.EnvFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, err
	}
	if f.LogLevel != "" {
		lvl := config.LogLevel(f.LogLevel)
		if !lvl.IsValid() {
			return nil, fmt.Errorf("app: invalid --log-level %q", f.LogLevel)
		}
		cfg.Server.LogLevel = lvl
	}
	return cfg, nil
}

// NewLogger returns a text logger on stderr at level.
func NewLogger(level config.LogLevel) *slog.Logger {
	return newLogger(os.Stderr, level)
}

func newLogger(w io.Writer, level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
