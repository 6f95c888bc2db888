package httptts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/voxbridge/pkg/audio"
	"github.com/MrWong99/voxbridge/pkg/provider/tts"
	"github.com/MrWong99/voxbridge/pkg/provider/tts/httptts"
)

func TestSynthesize(t *testing.T) {
	t.Parallel()
	want := audio.EncodeWAV(make([]byte, 320), 22050)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != httptts.Path {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var req httptts.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Text != "The current CPU temperature is 48.3 degrees Celsius." {
			t.Errorf("text = %q", req.Text)
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(want)
	}))
	defer srv.Close()

	c, err := httptts.New(srv.URL + "/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Synthesize(context.Background(), "The current CPU temperature is 48.3 degrees Celsius.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(got) != len(want) {
		t.Errorf("len = %d, want %d", len(got), len(want))
	}
}

func TestSynthesize_ErrorBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(httptts.ErrorResponse{
			Error:   "An internal server error occurred",
			Details: "model not loaded",
		})
	}))
	defer srv.Close()

	c, _ := httptts.New(srv.URL)
	_, err := c.Synthesize(context.Background(), "hello")
	var se *httptts.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Code != http.StatusInternalServerError || se.Details != "model not loaded" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestSynthesize_PlainErrorBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := httptts.New(srv.URL)
	_, err := c.Synthesize(context.Background(), "hello")
	var se *httptts.StatusError
	if !errors.As(err, &se) || se.Message != "bad gateway" {
		t.Errorf("err = %v, want StatusError with plain message", err)
	}
}

func TestSynthesize_InvalidAudio(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not audio"))
	}))
	defer srv.Close()

	c, _ := httptts.New(srv.URL)
	if _, err := c.Synthesize(context.Background(), "hello"); err == nil {
		t.Error("expected error for non-wav body")
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	t.Parallel()
	c, _ := httptts.New("http://127.0.0.1:1")
	if _, err := c.Synthesize(context.Background(), " "); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
}

func TestNew_EmptyURL(t *testing.T) {
	t.Parallel()
	if _, err := httptts.New(""); err == nil {
		t.Error("expected error")
	}
}
