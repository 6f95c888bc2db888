package app

import (
	"fmt"
	"log/slog"
	"maps"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/voxbridge/internal/config"
	"github.com/MrWong99/voxbridge/internal/resilience"
	"github.com/MrWong99/voxbridge/pkg/provider/llm"
	"github.com/MrWong99/voxbridge/pkg/provider/llm/anyllm"
	"github.com/MrWong99/voxbridge/pkg/provider/llm/openai"
	"github.com/MrWong99/voxbridge/pkg/provider/stt"
	"github.com/MrWong99/voxbridge/pkg/provider/stt/deepgram"
	"github.com/MrWong99/voxbridge/pkg/provider/stt/whisper"
	"github.com/MrWong99/voxbridge/pkg/provider/tts"
	"github.com/MrWong99/voxbridge/pkg/provider/tts/coqui"
	"github.com/MrWong99/voxbridge/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/voxbridge/pkg/provider/tts/httptts"
	"github.com/MrWong99/voxbridge/pkg/provider/vad"
	"github.com/MrWong99/voxbridge/pkg/provider/vad/rms"
)

// NewRegistry returns a registry holding every built-in provider.
func NewRegistry() *config.Registry {
	reg := config.NewRegistry()
	RegisterBuiltins(reg)
	return reg
}

// RegisterBuiltins adds the built-in provider factories to reg.
func RegisterBuiltins(reg *config.Registry) {
	// ---- LLM ----------------------------------------------------------------

	// Hosted models other than OpenAI share the any-llm pattern: optional
	// APIKey plus optional BaseURL.
	for _, name := range []string{"anthropic", "gemini", "llamacpp"} {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	// ollama is a local server; BaseURL is its address and no key is sent.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptionString("organization", ""); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// ---- STT ----------------------------------------------------------------

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language", ""); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptionString("model_path", "")
		}
		var opts []whisper.NativeOption
		if lang := entry.OptionString("language", ""); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language", ""); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// ---- TTS ----------------------------------------------------------------

	reg.RegisterTTS("http", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []httptts.Option
		if d, err := time.ParseDuration(entry.OptionString("timeout", "")); err == nil && d > 0 {
			opts = append(opts, httptts.WithTimeout(d))
		}
		return httptts.New(entry.BaseURL, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := entry.OptionString("language", ""); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if speaker := entry.OptionString("speaker", ""); speaker != "" {
			opts = append(opts, coqui.WithSpeaker(speaker))
		}
		if mode := entry.OptionString("api_mode", ""); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		if f := entry.OptionString("output_format", ""); f != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(f))
		}
		return elevenlabs.New(entry.APIKey, entry.OptionString("voice_id", ""), opts...)
	})

	// ---- VAD ----------------------------------------------------------------

	reg.RegisterVAD("rms", func(entry config.ProviderEntry) (vad.Engine, error) {
		return rms.New(rms.WithLevel(entry.OptionFloat("threshold", 500)))
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// ---- brain providers --------------------------------------------------------

// Providers holds the engines the brain needs. LLM and Cloud are optional: a
// nil model leaves its skill unregistered and the executor answers with the
// unsupported reply.
type Providers struct {
	STT   stt.Provider
	LLM   llm.Provider
	Cloud llm.Provider
	TTS   tts.Provider
}

// BuildProviders instantiates the brain's providers from cfg. Cloud
// fallbacks are chained behind circuit breakers after the primary.
func BuildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	p := &Providers{}
	var err error

	if p.STT, err = reg.CreateSTT(cfg.Providers.STT); err != nil {
		return nil, fmt.Errorf("app: create stt provider: %w", err)
	}
	ttsEntry := withOption(cfg.Providers.TTS, "timeout", cfg.Brain.TTSTimeout.String())
	if p.TTS, err = reg.CreateTTS(ttsEntry); err != nil {
		return nil, fmt.Errorf("app: create tts provider: %w", err)
	}
	if cfg.Providers.LLM.Name != "" {
		if p.LLM, err = reg.CreateLLM(cfg.Providers.LLM); err != nil {
			return nil, fmt.Errorf("app: create llm provider: %w", err)
		}
	}
	if cfg.Providers.Cloud.Name != "" {
		primary, err := reg.CreateLLM(cfg.Providers.Cloud)
		if err != nil {
			return nil, fmt.Errorf("app: create cloud provider: %w", err)
		}
		p.Cloud = primary
		if len(cfg.Providers.CloudFallbacks) > 0 {
			fb := resilience.NewLLMFallback(primary, resilience.FallbackConfig{})
			for _, entry := range cfg.Providers.CloudFallbacks {
				alt, err := reg.CreateLLM(entry)
				if err != nil {
					return nil, fmt.Errorf("app: create cloud fallback %q: %w", entry.Name, err)
				}
				fb.AddFallback(alt)
			}
			p.Cloud = fb
		}
	}
	return p, nil
}

// withOption returns e with Options[key] set to v unless already present. The
// original map is not modified.
func withOption(e config.ProviderEntry, key string, v any) config.ProviderEntry {
	if _, ok := e.Options[key]; ok {
		return e
	}
	opts := make(map[string]any, len(e.Options)+1)
	maps.Copy(opts, e.Options)
	opts[key] = v
	e.Options = opts
	return e
}
