// Package wsstream carries the session stream over a WebSocket for networks
// where HTTP/2 is unavailable.
//
// Framing: each binary message is one PCM chunk; the text message "end"
// half-closes the stream; the server answers with one JSON text message
// {"status_message": "..."} and closes normally. Handler failures close the
// socket with an error status and no receipt.
package wsstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/voxbridge/internal/fault"
	"github.com/MrWong99/voxbridge/internal/transport"
)

// Path is the HTTP route the stream is served on.
const Path = "/v1/stream"

// endMessage is the text frame that half-closes a stream.
const endMessage = "end"

// readLimit bounds a single chunk message.
const readLimit = 1 << 20

// ErrAborted is the cause of a Recv failure on a socket that closed or broke
// before the "end" message arrived.
var ErrAborted = errors.New("wsstream: stream ended without half-close")

// receipt is the terminal JSON message.
type receipt struct {
	StatusMessage string `json:"status_message"`
}

// ---- server -----------------------------------------------------------------

// Handler serves streams to a transport.Handler.
type Handler struct {
	handler transport.Handler
}

var _ http.Handler = (*Handler)(nil)

// NewHandler returns an http.Handler accepting WebSocket streams.
func NewHandler(h transport.Handler) *Handler {
	return &Handler{handler: h}
}

// ServeHTTP upgrades the request and runs one session on it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("wsstream: accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	ctx := r.Context()
	msg, err := h.handler.HandleStream(ctx, &chunkReader{conn: conn})
	if err != nil {
		code := websocket.StatusInternalError
		if fault.Is(err, fault.KindStreamTransport) {
			code = websocket.StatusGoingAway
		}
		_ = conn.Close(code, closeReason(err))
		return
	}
	if err := wsjson.Write(ctx, conn, receipt{StatusMessage: msg}); err != nil {
		slog.Warn("wsstream: write receipt", "error", err)
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

type chunkReader struct {
	conn *websocket.Conn
}

func (r *chunkReader) Recv(ctx context.Context) ([]byte, error) {
	typ, data, err := r.conn.Read(ctx)
	if err != nil {
		// The library reports a dropped peer as a wrapped io.EOF. Only the
		// "end" message may look like a half-close to the handler.
		if ctx.Err() != nil {
			return nil, fault.StreamTransport("recv chunk", ctx.Err())
		}
		return nil, fault.StreamTransport("recv chunk", fmt.Errorf("%w: %v", ErrAborted, err))
	}
	if typ == websocket.MessageText {
		if string(data) == endMessage {
			return nil, io.EOF
		}
		return nil, fault.StreamTransport("recv chunk", fmt.Errorf("unexpected text message %q", data))
	}
	return data, nil
}

// closeReason fits err into the 123-byte close frame limit without splitting
// a UTF-8 sequence.
func closeReason(err error) string {
	const limit = 120
	s := err.Error()
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ---- client -----------------------------------------------------------------

// Dialer opens one WebSocket per session.
type Dialer struct {
	url  string
	opts *websocket.DialOptions
}

var _ transport.Dialer = (*Dialer)(nil)

// NewDialer returns a Dialer for a ws:// or wss:// URL ending in [Path].
func NewDialer(url string) *Dialer {
	return &Dialer{url: url}
}

// Open performs the WebSocket handshake.
func (d *Dialer) Open(ctx context.Context) (transport.Stream, error) {
	conn, _, err := websocket.Dial(ctx, d.url, d.opts)
	if err != nil {
		return nil, fault.StreamTransport("dial "+d.url, err)
	}
	conn.SetReadLimit(readLimit)
	return &clientStream{conn: conn}, nil
}

type clientStream struct {
	conn *websocket.Conn
}

func (s *clientStream) Send(ctx context.Context, chunk []byte) error {
	if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
		return fault.StreamTransport("send chunk", err)
	}
	return nil
}

func (s *clientStream) CloseAndRecv(ctx context.Context) (string, error) {
	defer s.conn.CloseNow()
	if err := s.conn.Write(ctx, websocket.MessageText, []byte(endMessage)); err != nil {
		return "", fault.StreamTransport("half-close", err)
	}
	var rec receipt
	if err := wsjson.Read(ctx, s.conn, &rec); err != nil {
		var ce websocket.CloseError
		if errors.As(err, &ce) {
			err = fmt.Errorf("server closed with %v: %s", ce.Code, ce.Reason)
		}
		return "", fault.StreamTransport("await receipt", err)
	}
	_ = s.conn.Close(websocket.StatusNormalClosure, "")
	return rec.StatusMessage, nil
}

func (s *clientStream) Abort() {
	_ = s.conn.CloseNow()
}
