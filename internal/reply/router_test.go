package reply

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/celerix-dev/celerix-assist/internal/agents"
	"github.com/celerix-dev/celerix-assist/pkg/schema"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okBody(text string) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	}
}

func TestRoute_NoCredential(t *testing.T) {
	r := NewRouter(Config{}, discardLogger())

	got := r.Route(context.Background(), "study_buddy", "What is a fraction?", nil)
	if got.Source != SourceOffline {
		t.Errorf("expected offline source, got %s", got.Source)
	}
	if got.Text != agents.Fallback("study_buddy", "What is a fraction?") {
		t.Errorf("expected fallback text, got %q", got.Text)
	}
}

func TestRoute_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1beta/models/test-model:generateContent" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("expected key test-key, got %q", r.URL.Query().Get("key"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type application/json, got %q", r.Header.Get("Content-Type"))
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Role != "user" || req.Contents[0].Parts[0].Text != "What is a fraction?" {
			t.Errorf("unexpected contents: %+v", req.Contents)
		}

		json.NewEncoder(w).Encode(okBody("A fraction is part of a whole."))
	}))
	defer server.Close()

	r := NewRouter(Config{APIKey: "test-key", Model: "test-model", BaseURL: server.URL}, discardLogger())

	got := r.Route(context.Background(), "study_buddy", "What is a fraction?", nil)
	if got.Source != SourceModel {
		t.Errorf("expected model source, got %s", got.Source)
	}
	if got.Text != "A fraction is part of a whole." {
		t.Errorf("unexpected text %q", got.Text)
	}
}

func TestRoute_WindowsHistory(t *testing.T) {
	var got request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(okBody("ok"))
	}))
	defer server.Close()

	var history []schema.Message
	for i := 0; i < 10; i++ {
		role := schema.RoleUser
		if i%2 == 1 {
			role = schema.RoleAssistant
		}
		history = append(history, schema.NewMessage(role, fmt.Sprintf("turn-%d", i)))
	}

	r := NewRouter(Config{APIKey: "k", BaseURL: server.URL}, discardLogger())
	r.Generate(context.Background(), "study_buddy", "latest", history)

	if len(got.Contents) != HistoryWindow+1 {
		t.Fatalf("expected %d contents, got %d", HistoryWindow+1, len(got.Contents))
	}
	for i := 0; i < HistoryWindow; i++ {
		want := fmt.Sprintf("turn-%d", 10-HistoryWindow+i)
		if got.Contents[i].Parts[0].Text != want {
			t.Errorf("content %d: expected %q, got %q", i, want, got.Contents[i].Parts[0].Text)
		}
	}
	// turn-4 was a user turn, turn-5 an assistant turn
	if got.Contents[0].Role != "user" || got.Contents[1].Role != "model" {
		t.Errorf("unexpected role mapping: %s, %s", got.Contents[0].Role, got.Contents[1].Role)
	}
	last := got.Contents[HistoryWindow]
	if last.Role != "user" || last.Parts[0].Text != "latest" {
		t.Errorf("expected current input last, got %+v", last)
	}
}

func TestRoute_HTTPErrorIsAnnotated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota"}}`))
	}))
	defer server.Close()

	r := NewRouter(Config{APIKey: "k", BaseURL: server.URL}, discardLogger())
	got := r.Route(context.Background(), "money_mentor", "budget tips", nil)

	want := agents.Fallback("money_mentor", "budget tips") + "\n\n(Note: Gemini API returned 429)"
	if got.Text != want {
		t.Errorf("expected %q, got %q", want, got.Text)
	}
	if got.Source != SourceHTTPError || got.Status != 429 {
		t.Errorf("unexpected source/status %s/%d", got.Source, got.Status)
	}
}

func TestRoute_TransportErrorIsSilent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	r := NewRouter(Config{APIKey: "k", BaseURL: url}, discardLogger())
	got := r.Route(context.Background(), "gov_guide", "passport renewal", nil)

	if got.Text != agents.Fallback("gov_guide", "passport renewal") {
		t.Errorf("expected bare fallback, got %q", got.Text)
	}
	if strings.Contains(got.Text, "Note:") {
		t.Error("transport failures must not be annotated")
	}
	if got.Source != SourceTransportError {
		t.Errorf("expected transport source, got %s", got.Source)
	}
}

func TestRoute_MalformedPayload(t *testing.T) {
	bodies := map[string]string{
		"not json":      `<html>`,
		"no candidates": `{"candidates":[]}`,
		"no parts":      `{"candidates":[{"content":{"parts":[]}}]}`,
		"empty text":    `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer server.Close()

			r := NewRouter(Config{APIKey: "k", BaseURL: server.URL}, discardLogger())
			got := r.Route(context.Background(), "habit_coach", "new routine", nil)

			if got.Text != agents.Fallback("habit_coach", "new routine") {
				t.Errorf("expected bare fallback, got %q", got.Text)
			}
			if got.Source != SourceMalformedPayload {
				t.Errorf("expected malformed source, got %s", got.Source)
			}
		})
	}
}

func TestGenerateContent_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient("k", "", server.URL)
	_, err := c.GenerateContent(context.Background(), []Content{{Role: "user", Parts: []Part{{Text: "hi"}}}})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected HTTPError 500, got %v", err)
	}
}

func TestRoute_CustomFallback(t *testing.T) {
	r := NewRouter(Config{}, discardLogger()).WithFallback(func(agentID, input string) string {
		return agentID + ":" + input
	})
	if got := r.Generate(context.Background(), "x", "y", nil); got != "x:y" {
		t.Errorf("unexpected reply %q", got)
	}
	if r.Online() {
		t.Error("router without key must be offline")
	}
}

func TestRoute_CallerContextBoundsRequest(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient("k", "", server.URL)
	if client.client.Timeout != 0 {
		t.Errorf("expected no client timeout, got %v", client.client.Timeout)
	}

	r := NewRouter(Config{APIKey: "k", BaseURL: server.URL}, discardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	got := r.Route(ctx, "study_buddy", "hello", nil)
	if got.Source != SourceTransportError {
		t.Errorf("expected transport fallback after the caller's deadline, got %s", got.Source)
	}
	if got.Text != agents.Fallback("study_buddy", "hello") {
		t.Errorf("expected plain fallback text, got %q", got.Text)
	}
}
