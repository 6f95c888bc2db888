// Package httptts is the brain's client for the synthesis endpoint served by
// voxbridge-tts: POST /api/tts with {"text": "..."} answered by a WAV body.
package httptts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/voxbridge/pkg/provider/tts"
	"github.com/MrWong99/voxbridge/pkg/provider/tts/wav"
)

var _ tts.Provider = (*Client)(nil)

// Path is the synthesis route.
const Path = "/api/tts"

const (
	defaultTimeout   = 20 * time.Second
	maxResponseBytes = 32 << 20
)

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Defaults to 20 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// Client implements tts.Provider against a voxbridge-tts server.
type Client struct {
	endpoint string
	http     *http.Client
}

// New returns a Client for the server at baseURL, e.g. "http://jetson:5002".
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("httptts: baseURL must not be empty")
	}
	c := &Client{
		endpoint: strings.TrimRight(baseURL, "/") + Path,
		http:     &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Request is the JSON body of a synthesis call.
type Request struct {
	Text string `json:"text"`
}

// ErrorResponse is the JSON body of a failed call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// StatusError is returned when the server answers with a non-200 status.
type StatusError struct {
	Code    int
	Message string
	Details string
}

func (e *StatusError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("httptts: status %d: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("httptts: status %d: %s", e.Code, e.Message)
}

// Synthesize implements tts.Provider.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := tts.CheckText(text); err != nil {
		return nil, err
	}
	body, err := json.Marshal(Request{Text: text})
	if err != nil {
		return nil, fmt.Errorf("httptts: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httptts: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httptts: post: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("httptts: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		se := &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var er ErrorResponse
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			se.Message, se.Details = er.Error, er.Details
		}
		return nil, se
	}
	if _, err := wav.Parse(data); err != nil {
		return nil, fmt.Errorf("httptts: invalid audio: %w", err)
	}
	return data, nil
}
