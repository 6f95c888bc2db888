// Package config provides the configuration schema, loader and provider
// registry shared by the voxbridge edge, brain and TTS binaries.
//
// One YAML document configures all three processes; each binary reads the
// sections it needs. Zero values are filled by [Config.ApplyDefaults].
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Transport selects the edge-to-brain stream binding.
type Transport string

const (
	TransportGRPC      Transport = "grpc"
	TransportWebSocket Transport = "websocket"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportGRPC || t == TransportWebSocket
}

// InventoryDriver selects the datastore backend.
type InventoryDriver string

const (
	InventoryMemory   InventoryDriver = "memory"
	InventoryPostgres InventoryDriver = "postgres"
	InventoryMySQL    InventoryDriver = "mysql"
)

// IsValid reports whether d is a recognised driver.
func (d InventoryDriver) IsValid() bool {
	switch d {
	case InventoryMemory, InventoryPostgres, InventoryMySQL:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Edge      EdgeConfig      `yaml:"edge"`
	Brain     BrainConfig     `yaml:"brain"`
	TTSServer TTSServerConfig `yaml:"tts_server"`
	Providers ProvidersConfig `yaml:"providers"`
	Inventory InventoryConfig `yaml:"inventory"`
}

// ServerConfig holds settings common to every binary.
type ServerConfig struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`
}

// EdgeConfig configures the capture device.
type EdgeConfig struct {
	// Server is the brain address: host:port for grpc, a ws:// URL for
	// websocket. Default: localhost:50051.
	Server string `yaml:"server"`

	// Transport selects the stream binding. Default: grpc.
	Transport Transport `yaml:"transport"`

	// InputDevice selects the microphone by name substring. Empty uses the
	// system default.
	InputDevice string `yaml:"input_device"`

	SampleRate int `yaml:"sample_rate"`
	FrameMs    int `yaml:"frame_ms"`

	PrerollFrames      int `yaml:"preroll_frames"`
	HangoverFrames     int `yaml:"hangover_frames"`
	MaxUtteranceFrames int `yaml:"max_utterance_frames"`

	// ReceiptTimeout bounds the wait for the brain's receipt. Zero waits
	// indefinitely.
	ReceiptTimeout time.Duration `yaml:"receipt_timeout"`

	// Retry bounds capture device reopen episodes.
	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig mirrors resilience.RetryConfig in YAML form.
type RetryConfig struct {
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	MaxAttempts    int           `yaml:"max_attempts"`
}

// BrainConfig configures the central service.
type BrainConfig struct {
	// Listen is the gRPC listen address. Default: :50051.
	Listen string `yaml:"listen"`

	// WSListen is the WebSocket stream listen address. Empty disables it.
	WSListen string `yaml:"ws_listen"`

	// AdminListen serves /healthz, /readyz and /metrics. Empty disables it.
	// Default: :9090.
	AdminListen string `yaml:"admin_listen"`

	// MaxSessions bounds concurrent sessions. Default: 10.
	MaxSessions int `yaml:"max_sessions"`

	// Language is passed to the STT provider.
	Language string `yaml:"language"`

	CloudTimeout time.Duration `yaml:"cloud_timeout"`
	LocalTimeout time.Duration `yaml:"local_timeout"`
	TTSTimeout   time.Duration `yaml:"tts_timeout"`

	// HistoryLimit caps the conversation history. Default: 6.
	HistoryLimit int `yaml:"history_limit"`

	// ThermalZone is the sysfs temperature file.
	ThermalZone string `yaml:"thermal_zone"`

	// Player is the external playback command. "portaudio" plays in-process.
	// Default: aplay.
	Player     string   `yaml:"player"`
	PlayerArgs []string `yaml:"player_args"`

	// AckSound is a WAV file played after transcription. Empty disables it.
	AckSound string `yaml:"ack_sound"`

	// ShutdownTimeout bounds the drain of in-flight sessions. Default: 30s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TTSServerConfig configures voxbridge-tts.
type TTSServerConfig struct {
	// Listen is the HTTP listen address. Default: :5002.
	Listen string `yaml:"listen"`
}

// ProvidersConfig declares which provider implementation to use for each
// external engine. Each entry selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	// STT transcribes brain sessions.
	STT ProviderEntry `yaml:"stt"`

	// LLM is the local conversational model.
	LLM ProviderEntry `yaml:"llm"`

	// Cloud is the primary cloud model; CloudFallbacks are tried in order
	// behind circuit breakers.
	Cloud          ProviderEntry   `yaml:"cloud"`
	CloudFallbacks []ProviderEntry `yaml:"cloud_fallbacks"`

	// TTS is the brain's synthesis client; TTSBackend is the engine behind
	// voxbridge-tts.
	TTS        ProviderEntry `yaml:"tts"`
	TTSBackend ProviderEntry `yaml:"tts_backend"`

	VAD      ProviderEntry `yaml:"vad"`
	Wakeword ProviderEntry `yaml:"wakeword"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider, or a model file
	// path for in-process engines.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// OptionString returns Options[key] as a string, or def when absent or not a
// string.
func (e ProviderEntry) OptionString(key, def string) string {
	if v, ok := e.Options[key].(string); ok {
		return v
	}
	return def
}

// OptionFloat returns Options[key] as a float64, accepting YAML ints and
// floats, or def.
func (e ProviderEntry) OptionFloat(key string, def float64) float64 {
	switch v := e.Options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// InventoryConfig selects the datastore.
type InventoryConfig struct {
	// Driver is memory, postgres or mysql. Default: memory.
	Driver InventoryDriver `yaml:"driver"`

	// DSN is the driver connection string.
	DSN string `yaml:"dsn"`

	// Migrate creates the table when missing.
	Migrate bool `yaml:"migrate"`
}

// ApplyDefaults fills every zero field with its documented default.
func (c *Config) ApplyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}

	e := &c.Edge
	if e.Server == "" {
		e.Server = "localhost:50051"
	}
	if e.Transport == "" {
		e.Transport = TransportGRPC
	}
	setInt(&e.SampleRate, 16000)
	setInt(&e.FrameMs, 30)
	setInt(&e.PrerollFrames, 10)
	setInt(&e.HangoverFrames, 50)
	setInt(&e.MaxUtteranceFrames, 500)

	b := &c.Brain
	if b.Listen == "" {
		b.Listen = ":50051"
	}
	if b.AdminListen == "" {
		b.AdminListen = ":9090"
	}
	setInt(&b.MaxSessions, 10)
	setInt(&b.HistoryLimit, 6)
	setDuration(&b.CloudTimeout, 20*time.Second)
	setDuration(&b.LocalTimeout, 30*time.Second)
	setDuration(&b.TTSTimeout, 20*time.Second)
	setDuration(&b.ShutdownTimeout, 30*time.Second)
	if b.Player == "" {
		b.Player = "aplay"
	}

	if c.TTSServer.Listen == "" {
		c.TTSServer.Listen = ":5002"
	}
	if c.Inventory.Driver == "" {
		c.Inventory.Driver = InventoryMemory
	}

	p := &c.Providers
	if p.Wakeword.Name == "" {
		p.Wakeword.Name = "phonetic"
	}
	if p.VAD.Name == "" {
		p.VAD.Name = "rms"
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func setDuration(v *time.Duration, def time.Duration) {
	if *v == 0 {
		*v = def
	}
}
