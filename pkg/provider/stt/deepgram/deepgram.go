// Package deepgram provides a streaming STT provider over the Deepgram
// WebSocket API. Audio is forwarded while the stream is still arriving and the
// final transcript segments are joined when the session is finalized.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/MrWong99/voxbridge/pkg/provider/stt"
)

const (
	defaultEndpoint   = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model (e.g. "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the default recognition language.
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithSampleRate sets the default sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithKeywords boosts recognition of domain words such as inventory item
// names. Each entry is sent as "word:boost".
func WithKeywords(boost float64, words ...string) Option {
	return func(p *Provider) {
		for _, w := range words {
			p.keywords = append(p.keywords, fmt.Sprintf("%s:%g", w, boost))
		}
	}
}

// WithEndpoint overrides the listen endpoint. Used against self-hosted
// deployments and in tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey     string
	endpoint   string
	model      string
	language   string
	sampleRate int
	keywords   []string
}

// New creates a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream dials Deepgram and starts forwarding audio.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}
	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	// The read loop outlives StartStream's ctx; Finalize and Close end it.
	readCtx, cancel := context.WithCancel(context.Background())
	s := &session{conn: conn, cancel: cancel, readDone: make(chan struct{})}
	go s.readLoop(readCtx)
	return s, nil
}

func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}
	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("encoding", "linear16")
	q.Set("channels", "1")
	q.Set("sample_rate", strconv.Itoa(sr))
	for _, kw := range p.keywords {
		q.Add("keywords", kw)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// response is the subset of a Deepgram Results event that is used.
type response struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type session struct {
	conn     *websocket.Conn
	cancel   context.CancelFunc
	readDone chan struct{}

	mu      sync.Mutex
	finals  []string
	readErr error
	closed  bool
}

var _ stt.SessionHandle = (*session)(nil)

func (s *session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return stt.ErrSessionClosed
	}
	if err := s.conn.Write(context.Background(), websocket.MessageBinary, chunk); err != nil {
		return fmt.Errorf("deepgram: send audio: %w", err)
	}
	return nil
}

// Finalize asks Deepgram to flush, waits until it closes the socket and
// returns the joined final segments.
func (s *session) Finalize(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", stt.ErrSessionClosed
	}
	s.closed = true
	s.mu.Unlock()
	defer s.shutdown()

	if err := s.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return "", fmt.Errorf("deepgram: close stream: %w", err)
	}
	select {
	case <-s.readDone:
	case <-ctx.Done():
		return "", fmt.Errorf("deepgram: await final transcript: %w", ctx.Err())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return "", s.readErr
	}
	return strings.Join(s.finals, " "), nil
}

func (s *session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.shutdown()
	return nil
}

func (s *session) shutdown() {
	s.cancel()
	s.conn.Close(websocket.StatusNormalClosure, "session closed")
	<-s.readDone
}

func (s *session) readLoop(ctx context.Context) {
	defer close(s.readDone)
	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && ctx.Err() == nil {
				s.mu.Lock()
				s.readErr = fmt.Errorf("deepgram: read: %w", err)
				s.mu.Unlock()
			}
			return
		}
		text, final, ok := parseResponse(msg)
		if !ok || !final || text == "" {
			continue
		}
		s.mu.Lock()
		s.finals = append(s.finals, text)
		s.mu.Unlock()
	}
}

// parseResponse extracts the top alternative of a Results message.
func parseResponse(data []byte) (text string, final, ok bool) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", false, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return "", false, false
	}
	return strings.TrimSpace(resp.Channel.Alternatives[0].Transcript), resp.IsFinal, true
}
