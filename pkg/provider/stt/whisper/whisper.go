// Package whisper provides whisper.cpp-backed speech-to-text.
//
// Two backends share the same session behaviour: audio is buffered for the
// whole stream and transcribed once when the stream half-closes.
//
//   - Provider talks to a running whisper-server over HTTP (POST /inference
//     with a multipart WAV upload).
//   - NativeProvider loads a ggml model in-process through the CGO bindings.
//
// Both also implement stt.Transcriber for one-shot buffers, which the wake
// phrase spotter uses.
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithLanguage("en"))
//	h, _ := p.StartStream(ctx, stt.StreamConfig{SampleRate: 16000})
//	h.SendAudio(chunk)
//	text, err := h.Finalize(ctx)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/voxbridge/pkg/audio"
	"github.com/MrWong99/voxbridge/pkg/provider/stt"
)

const (
	defaultLanguage   = "en"
	defaultSampleRate = 16000
	defaultTimeout    = 30 * time.Second

	// defaultMaxBufferMs caps the audio buffered per session.
	defaultMaxBufferMs = 30_000
)

var (
	_ stt.Provider    = (*Provider)(nil)
	_ stt.Transcriber = (*Provider)(nil)
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model name forwarded to the server. Empty (the default)
// uses whichever model the server was started with.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the recognition language. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSampleRate sets the default PCM sample rate. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithTimeout sets the HTTP client timeout per inference. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithMaxBufferMs caps the audio buffered per session. Defaults to 30 000 ms.
func WithMaxBufferMs(ms int) Option {
	return func(p *Provider) { p.maxBufferMs = ms }
}

// Provider implements stt.Provider against a whisper.cpp HTTP server.
type Provider struct {
	serverURL   string
	model       string
	language    string
	sampleRate  int
	maxBufferMs int
	httpClient  *http.Client
}

// New returns a Provider for the whisper-server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:   strings.TrimRight(serverURL, "/"),
		language:    defaultLanguage,
		sampleRate:  defaultSampleRate,
		maxBufferMs: defaultMaxBufferMs,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a buffered session. No request is made until Finalize.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = p.sampleRate
	}
	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	infer := func(ctx context.Context, pcm []byte) (string, error) {
		return p.infer(ctx, pcm, rate, lang)
	}
	return newBufferedSession(infer, maxBytes(p.maxBufferMs, rate)), nil
}

// Transcribe sends pcm (at the provider sample rate) for one inference.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	text, err := p.infer(ctx, pcm, p.sampleRate, p.language)
	return strings.TrimSpace(text), err
}

// infer uploads pcm as a WAV file to /inference and returns the text.
func (p *Provider) infer(ctx context.Context, pcm []byte, rate int, lang string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(audio.EncodeWAV(pcm, rate)); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}
	if lang != "" {
		if err := mw.WriteField("language", lang); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return "", fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("whisper: write format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return result.Text, nil
}

func maxBytes(ms, rate int) int {
	if ms <= 0 {
		return 0
	}
	return ms * rate / 1000 * audio.BytesPerSample
}
