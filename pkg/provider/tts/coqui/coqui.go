// Package coqui synthesizes speech with a locally running Coqui TTS server.
//
// Two server APIs are supported:
//
//   - APIModeStandard (default): the stock Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu), GET /api/tts with query parameters.
//   - APIModeXTTS: the XTTS v2 API server, POST /tts_to_audio/ with a JSON
//     body naming a speaker.
//
// Both return a complete WAV file, which is validated and passed through
// unchanged.
//
//	p, err := coqui.New("http://localhost:5002", coqui.WithLanguage("en"))
//	wav, err := p.Synthesize(ctx, "Okay, I've added 2 beakers to the inventory.")
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/voxbridge/pkg/provider/tts"
	"github.com/MrWong99/voxbridge/pkg/provider/tts/wav"
)

var _ tts.Provider = (*Provider)(nil)

const (
	defaultTimeout = 30 * time.Second
	xttsEndpoint   = "/tts_to_audio/"
	apiTTSEndpoint = "/api/tts"

	// maxResponseBytes caps a single synthesized reply.
	maxResponseBytes = 32 << 20
)

// APIMode selects which Coqui server API the provider targets.
type APIMode string

const (
	APIModeXTTS     APIMode = "xtts"
	APIModeStandard APIMode = "standard"
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the language code sent to the server. Empty omits it,
// which single-language models require.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSpeaker selects the speaker: speaker_id in standard mode, speaker_wav
// in XTTS mode.
func WithSpeaker(id string) Option {
	return func(p *Provider) { p.speaker = id }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithAPIMode sets the server API mode.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) { p.apiMode = mode }
}

// WithHTTPClient replaces the HTTP client. Its Timeout is kept as is.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements tts.Provider against a Coqui TTS server.
type Provider struct {
	serverURL  string
	language   string
	speaker    string
	apiMode    APIMode
	httpClient *http.Client
}

// New creates a Provider targeting the server at serverURL. XTTS mode
// requires a speaker.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		apiMode:    APIModeStandard,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	switch p.apiMode {
	case APIModeStandard:
	case APIModeXTTS:
		if p.speaker == "" {
			return nil, errors.New("coqui: XTTS mode requires a speaker")
		}
	default:
		return nil, fmt.Errorf("coqui: unknown api mode %q", p.apiMode)
	}
	return p, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := tts.CheckText(text); err != nil {
		return nil, err
	}
	req, err := p.newRequest(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("coqui: create request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("coqui: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: %s %s returned status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, snippet(body))
	}
	if _, err := wav.Parse(body); err != nil {
		return nil, fmt.Errorf("coqui: invalid audio: %w", err)
	}
	return body, nil
}

func (p *Provider) newRequest(ctx context.Context, text string) (*http.Request, error) {
	if p.apiMode == APIModeXTTS {
		data, err := json.Marshal(xttsRequest{Text: text, SpeakerWav: p.speaker, Language: p.language})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+xttsEndpoint, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	params := url.Values{}
	params.Set("text", text)
	if p.speaker != "" {
		params.Set("speaker_id", p.speaker)
	}
	if p.language != "" {
		params.Set("language_id", p.language)
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+apiTTSEndpoint+"?"+params.Encode(), nil)
}

type xttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language,omitempty"`
}

// snippet trims an error body for inclusion in an error message.
func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
