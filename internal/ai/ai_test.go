package ai

import (
	"context"
	"encoding/json/v2"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/noveldeck/noveldeck-server/internal/config"
	"github.com/noveldeck/noveldeck-server/internal/errors"
	"github.com/noveldeck/noveldeck-server/internal/logger"
	"github.com/noveldeck/noveldeck-server/internal/ratelimit"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Writer: io.Discard, Environment: "test", Level: slog.LevelError})
}

func testLimiter() *ratelimit.KeyedLimiter {
	return ratelimit.New(1000, 1000)
}

// fakeGemini serves the upload, status, and generate endpoints. Keys in
// badKeys are rejected with 429.
type fakeGemini struct {
	badKeys     map[string]bool
	generations atomic.Int64
	reply       string
}

func (f *fakeGemini) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload/v1beta/files", func(w http.ResponseWriter, r *http.Request) {
		if f.badKeys[r.URL.Query().Get("key")] {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.MarshalWrite(w, map[string]any{
			"file": map[string]any{"name": "files/abc", "uri": "gs://files/abc", "state": "ACTIVE"},
		})
	})
	mux.HandleFunc("GET /v1beta/files/abc", func(w http.ResponseWriter, r *http.Request) {
		json.MarshalWrite(w, map[string]any{"name": "files/abc", "uri": "gs://files/abc", "state": "ACTIVE"})
	})
	mux.HandleFunc("DELETE /v1beta/files/abc", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /v1beta/models/{model}", func(w http.ResponseWriter, r *http.Request) {
		if f.badKeys[r.URL.Query().Get("key")] {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		f.generations.Add(1)
		payload := f.reply
		if payload == "" {
			payload = `{"content": "processed text"}`
		}
		json.MarshalWrite(w, map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{
					"parts": []any{map[string]any{"text": payload}},
				}},
			},
		})
	})
	return mux
}

func geminiConfig(serverURL string, keys ...string) config.AIConfig {
	return config.AIConfig{
		Provider:      "gemini",
		GeminiAPIKeys: keys,
		GeminiBaseURL: serverURL,
		GeminiModel:   "test-model",
		MaxRetries:    3,
		Timeout:       5 * time.Second,
	}
}

func TestGeminiProcessContent(t *testing.T) {
	fake := &fakeGemini{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	p := newGeminiProvider(geminiConfig(srv.URL, "key-1"), testLimiter(), testLogger())
	got, err := p.ProcessContent(context.Background(), "Translate: {{content}}", "chapter text")
	if err != nil {
		t.Fatalf("ProcessContent: %v", err)
	}
	if got != "processed text" {
		t.Errorf("result = %q", got)
	}
}

func TestGeminiRotatesKeysOnQuota(t *testing.T) {
	fake := &fakeGemini{badKeys: map[string]bool{"key-1": true}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	p := newGeminiProvider(geminiConfig(srv.URL, "key-1", "key-2"), testLimiter(), testLogger())
	got, err := p.ProcessContent(context.Background(), "prompt", "text")
	if err != nil {
		t.Fatalf("ProcessContent with healthy second key: %v", err)
	}
	if got != "processed text" {
		t.Errorf("result = %q", got)
	}
}

func TestGeminiExhaustsPool(t *testing.T) {
	fake := &fakeGemini{badKeys: map[string]bool{"key-1": true, "key-2": true}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	p := newGeminiProvider(geminiConfig(srv.URL, "key-1", "key-2"), testLimiter(), testLogger())
	_, err := p.ProcessContent(context.Background(), "prompt", "text")
	if !errors.Is(err, errors.ErrRateLimited) {
		t.Errorf("err = %v, want RATE_LIMITED (last error surfaced)", err)
	}
}

func TestGeminiBadResponseSchema(t *testing.T) {
	fake := &fakeGemini{reply: "not schema json"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	cfg := geminiConfig(srv.URL, "key-1")
	cfg.MaxRetries = 1
	p := newGeminiProvider(cfg, testLimiter(), testLogger())
	_, err := p.ProcessContent(context.Background(), "prompt", "text")
	if !errors.Is(err, errors.ErrBadResponse) {
		t.Errorf("err = %v, want BAD_RESPONSE", err)
	}
}

func TestResolveProviders(t *testing.T) {
	cfg := &config.Config{AI: config.AIConfig{
		Provider:      "gemini",
		GeminiAPIKeys: []string{"k"},
		GeminiModel:   "m",
		LocalEndpoint: "http://localhost:1234",
		MaxRetries:    3,
		Timeout:       time.Second,
	}}
	r := NewResolver(cfg, testLimiter(), testLogger())

	p, err := r.Resolve("")
	if err != nil {
		t.Fatalf("resolving default: %v", err)
	}
	if p.Name() != "gemini" {
		t.Errorf("default provider = %q", p.Name())
	}

	p, err = r.Resolve("local")
	if err != nil {
		t.Fatalf("resolving local: %v", err)
	}
	if p.Name() != "local" {
		t.Errorf("provider = %q", p.Name())
	}

	if _, err := r.Resolve("mystery"); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("unknown kind err = %v, want VALIDATION", err)
	}
}

func TestResolveNotConfigured(t *testing.T) {
	cfg := &config.Config{AI: config.AIConfig{Provider: "gemini"}}
	r := NewResolver(cfg, testLimiter(), testLogger())

	if _, err := r.Resolve("gemini"); !errors.Is(err, errors.ErrNotConfigured) {
		t.Errorf("gemini err = %v, want NOT_CONFIGURED", err)
	}
	if _, err := r.Resolve("local"); !errors.Is(err, errors.ErrNotConfigured) {
		t.Errorf("local err = %v, want NOT_CONFIGURED", err)
	}
}

func TestLocalProcessContent(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "chapter text") {
			t.Errorf("content not interpolated into prompt: %+v", req.Messages)
		}
		calls.Add(1)
		json.MarshalWrite(w, map[string]any{
			"choices": []any{map[string]any{
				"message": map[string]any{"content": "```\nprocessed\n```"},
			}},
		})
	}))
	defer srv.Close()

	cfg := config.AIConfig{LocalEndpoint: srv.URL, LocalModel: "test", MaxRetries: 2, Timeout: 5 * time.Second}
	p := newLocalProvider(cfg, testLimiter(), testLogger())

	got, err := p.ProcessContent(context.Background(), "Simplify: {{content}}", "chapter text")
	if err != nil {
		t.Fatalf("ProcessContent: %v", err)
	}
	if got != "processed" {
		t.Errorf("result = %q, want fences stripped", got)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestLocalRetriesTransient(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.MarshalWrite(w, map[string]any{
			"choices": []any{map[string]any{
				"message": map[string]any{"content": "ok"},
			}},
		})
	}))
	defer srv.Close()

	cfg := config.AIConfig{LocalEndpoint: srv.URL, LocalModel: "test", MaxRetries: 3, Timeout: 5 * time.Second}
	p := newLocalProvider(cfg, testLimiter(), testLogger())

	got, err := p.ProcessContent(context.Background(), "prompt", "text")
	if err != nil {
		t.Fatalf("ProcessContent: %v", err)
	}
	if got != "ok" {
		t.Errorf("result = %q", got)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", calls.Load())
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"```\nwrapped\n```", "wrapped"},
		{"```html\n<p>x</p>\n```", "<p>x</p>"},
		{"``` incomplete", "``` incomplete"},
	}
	for _, tt := range tests {
		if got := stripCodeFences(tt.in); got != tt.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
