// Package ttsserver serves POST /api/tts in front of a tts.Provider.
//
// The body is {"text": "..."}. A missing body or key answers 400 "No text
// provided", blank text answers 400 "Text cannot be empty", a synthesis
// failure answers 500 with the error in "details". Success streams the WAV
// file back as an attachment named response.wav.
package ttsserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/voxbridge/internal/observe"
	"github.com/MrWong99/voxbridge/pkg/provider/tts"
	"github.com/MrWong99/voxbridge/pkg/provider/tts/httptts"
)

// Error messages returned in the "error" field.
const (
	MsgNoText   = "No text provided"
	MsgEmpty    = "Text cannot be empty"
	MsgInternal = "An internal server error occurred"
)

// maxBodyBytes bounds the request body.
const maxBodyBytes = 64 << 10

// Handler is the synthesis endpoint.
type Handler struct {
	backend tts.Provider
	name    string
	metrics *observe.Metrics
}

var _ http.Handler = (*Handler)(nil)

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics records one provider request per synthesis.
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithBackendName labels the backend in logs and metrics. Defaults to "tts".
func WithBackendName(name string) Option {
	return func(h *Handler) { h.name = name }
}

// New returns a Handler synthesizing through backend.
func New(backend tts.Provider, opts ...Option) *Handler {
	h := &Handler{backend: backend, name: "tts"}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Mux returns a ServeMux with the handler mounted on httptts.Path.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST "+httptts.Path, h)
	return mux
}

type request struct {
	Text *string `json:"text"`
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx).With("remote", r.RemoteAddr)

	var req request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil || req.Text == nil {
		log.Warn("tts request without text", "error", err)
		writeError(w, http.StatusBadRequest, httptts.ErrorResponse{Error: MsgNoText})
		return
	}
	text := *req.Text
	if strings.TrimSpace(text) == "" {
		log.Warn("tts request with empty text")
		writeError(w, http.StatusBadRequest, httptts.ErrorResponse{Error: MsgEmpty})
		return
	}

	log.Info("synthesizing", "chars", len(text))
	start := time.Now()
	wav, err := h.backend.Synthesize(ctx, text)
	if err != nil {
		h.record(r, "error")
		log.Error("synthesis failed", "backend", h.name, "error", err)
		writeError(w, http.StatusInternalServerError, httptts.ErrorResponse{Error: MsgInternal, Details: err.Error()})
		return
	}
	h.record(r, "ok")
	log.Info("synthesized", "bytes", len(wav), "duration", time.Since(start))

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `attachment; filename="response.wav"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(wav); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		log.Warn("write tts response", "error", err)
	}
}

func (h *Handler) record(r *http.Request, status string) {
	if h.metrics != nil {
		h.metrics.RecordProviderRequest(r.Context(), h.name, "tts", status)
	}
}

func writeError(w http.ResponseWriter, code int, body httptts.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
