package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSONInProduction(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "production"})

	log.Info("chapter cached", "book_id", "bk_1", "chapter", 3)

	out := buf.String()
	if !strings.Contains(out, `"msg":"chapter cached"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
	if !strings.Contains(out, `"book_id":"bk_1"`) {
		t.Errorf("expected attrs in JSON output, got %q", out)
	}
}

func TestNew_PrettyInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "development"})

	log.Info("prefetch started", "book_id", "bk_2")

	out := buf.String()
	if !strings.Contains(out, "prefetch started") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "book_id=bk_2") {
		t.Errorf("expected key=value attrs, got %q", out)
	}
}

func TestPrettyHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "pretty", Level: slog.LevelWarn})

	log.Debug("should be hidden")
	log.Info("also hidden")
	log.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("levels below warn should be filtered, got %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn level should pass, got %q", out)
	}
}

func TestPrettyHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "pretty"})

	scoped := log.With("task_id", "tts-abc")
	scoped.Info("segment ready", "index", 2)

	out := buf.String()
	if !strings.Contains(out, "task_id=tts-abc") {
		t.Errorf("expected bound attrs in output, got %q", out)
	}
	if !strings.Contains(out, "index=2") {
		t.Errorf("expected call attrs in output, got %q", out)
	}
}
