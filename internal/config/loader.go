package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":         {"whisper", "whisper-native", "deepgram"},
	"llm":         {"ollama", "openai", "anthropic", "gemini", "llamacpp"},
	"cloud":       {"openai", "anthropic", "gemini", "ollama"},
	"tts":         {"http", "coqui", "elevenlabs"},
	"tts_backend": {"coqui", "elevenlabs"},
	"vad":         {"rms"},
	"wakeword":    {"phonetic"},
}

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load env %q: %w", p, err)
		}
		slog.Debug("loaded env file", "path", p)
	}
	return nil
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader expands ${VAR} references from the environment, decodes a
// YAML config from r, applies defaults and validates the result. An empty
// document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Edge
	e := cfg.Edge
	if e.Transport != "" && !e.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("edge.transport %q is invalid; valid values: grpc, websocket", e.Transport))
	}
	if e.SampleRate < 0 || e.FrameMs < 0 {
		errs = append(errs, fmt.Errorf("edge.sample_rate and edge.frame_ms must be positive, got %d and %d", e.SampleRate, e.FrameMs))
	}
	if e.PrerollFrames < 0 || e.HangoverFrames < 0 {
		errs = append(errs, fmt.Errorf("edge.preroll_frames and edge.hangover_frames must be positive, got %d and %d", e.PrerollFrames, e.HangoverFrames))
	}
	if e.MaxUtteranceFrames != 0 && e.MaxUtteranceFrames <= e.PrerollFrames {
		errs = append(errs, fmt.Errorf("edge.max_utterance_frames (%d) must exceed edge.preroll_frames (%d)", e.MaxUtteranceFrames, e.PrerollFrames))
	}
	if e.Retry.MaxBackoff != 0 && e.Retry.MaxBackoff < e.Retry.InitialBackoff {
		errs = append(errs, fmt.Errorf("edge.retry.max_backoff %v is below initial_backoff %v", e.Retry.MaxBackoff, e.Retry.InitialBackoff))
	}

	// Brain
	b := cfg.Brain
	if b.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("brain.max_sessions must be positive, got %d", b.MaxSessions))
	}
	if b.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("brain.history_limit must be positive, got %d", b.HistoryLimit))
	}
	for name, d := range map[string]int64{
		"cloud_timeout":    int64(b.CloudTimeout),
		"local_timeout":    int64(b.LocalTimeout),
		"tts_timeout":      int64(b.TTSTimeout),
		"shutdown_timeout": int64(b.ShutdownTimeout),
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("brain.%s must not be negative", name))
		}
	}
	if b.Listen != "" && b.Listen == b.WSListen {
		errs = append(errs, fmt.Errorf("brain.ws_listen %q collides with brain.listen", b.WSListen))
	}

	// Providers
	p := cfg.Providers
	for _, kv := range []struct {
		kind string
		e    ProviderEntry
	}{
		{"stt", p.STT}, {"llm", p.LLM}, {"cloud", p.Cloud}, {"tts", p.TTS},
		{"tts_backend", p.TTSBackend}, {"vad", p.VAD}, {"wakeword", p.Wakeword},
	} {
		validateProviderName(kv.kind, kv.e.Name)
	}
	for i, fb := range p.CloudFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.cloud_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("cloud", fb.Name)
	}
	if th := p.Wakeword.OptionFloat("threshold", 0.85); th <= 0 || th > 1 {
		errs = append(errs, fmt.Errorf("providers.wakeword.options.threshold %v is out of range (0, 1]", th))
	}
	if lvl := p.VAD.OptionFloat("threshold", 500); lvl <= 0 {
		errs = append(errs, fmt.Errorf("providers.vad.options.threshold must be positive, got %v", lvl))
	}

	// Inventory
	inv := cfg.Inventory
	if inv.Driver != "" && !inv.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("inventory.driver %q is invalid; valid values: memory, postgres, mysql", inv.Driver))
	}
	if (inv.Driver == InventoryPostgres || inv.Driver == InventoryMySQL) && inv.DSN == "" {
		errs = append(errs, fmt.Errorf("inventory.dsn is required for driver %q", inv.Driver))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
