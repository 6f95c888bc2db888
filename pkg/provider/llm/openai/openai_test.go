package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voxbridge/pkg/provider/llm"
)

func TestConvertMessage_Roles(t *testing.T) {
	t.Parallel()
	for _, want := range []string{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant} {
		t.Run(want, func(t *testing.T) {
			t.Parallel()
			p, err := convertMessage(llm.Message{Role: want, Content: "x"})
			if err != nil {
				t.Fatalf("convertMessage(%q) error: %v", want, err)
			}
			set := map[string]bool{
				llm.RoleSystem:    p.OfSystem != nil,
				llm.RoleUser:      p.OfUser != nil,
				llm.RoleAssistant: p.OfAssistant != nil,
			}
			for role, ok := range set {
				if ok != (role == want) {
					t.Errorf("role %q: variant %q set = %v", want, role, ok)
				}
			}
		})
	}
}

func TestConvertMessage_UnknownRole(t *testing.T) {
	t.Parallel()
	if _, err := convertMessage(llm.Message{Role: "tool", Content: "x"}); err == nil {
		t.Fatal("expected error for unsupported role")
	}
}

func TestNew(t *testing.T) {
	t.Parallel()
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("New with empty api key expected error")
	}
	p, err := New("sk-test", "", WithOrganization("org-1"), WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if p.Name() != "openai/"+DefaultModel {
		t.Errorf("Name() = %q, want default model", p.Name())
	}
}

func completionServer(t *testing.T, status int, body string, gotReq *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if gotReq != nil {
			_ = json.NewDecoder(r.Body).Decode(gotReq)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete(t *testing.T) {
	t.Parallel()
	var req map[string]any
	srv := completionServer(t, http.StatusOK, `{
		"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
		"choices": [{"index": 0, "finish_reason": "stop",
			"message": {"role": "assistant", "content": "Mars has two moons."}}],
		"usage": {"prompt_tokens": 9, "completion_tokens": 5, "total_tokens": 14}
	}`, &req)

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "Be brief.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "how many moons does mars have"}},
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if resp.Content != "Mars has two moons." {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 14 {
		t.Errorf("TotalTokens = %d, want 14", resp.Usage.TotalTokens)
	}
	if req["model"] != "gpt-4o-mini" {
		t.Errorf("request model = %v", req["model"])
	}
	if msgs, _ := req["messages"].([]any); len(msgs) != 2 {
		t.Errorf("request carried %d messages, want system + user", len(msgs))
	}
}

func TestComplete_NoChoices(t *testing.T) {
	t.Parallel()
	srv := completionServer(t, http.StatusOK,
		`{"id":"x","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[]}`, nil)
	p, _ := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/"))
	_, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if err == nil || !strings.Contains(err.Error(), "empty response") {
		t.Errorf("Complete() error = %v, want empty response", err)
	}
}

func TestComplete_ServerError(t *testing.T) {
	t.Parallel()
	srv := completionServer(t, http.StatusInternalServerError, `{"error":{"message":"boom"}}`, nil)
	p, _ := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/"))
	_, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Error("Complete() expected error on 500")
	}
}

func TestComplete_NoMessages(t *testing.T) {
	t.Parallel()
	p, _ := New("sk-test", "gpt-4o-mini")
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{}); err == nil {
		t.Error("Complete() with no messages expected error")
	}
}
