package books

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/noveldeck/noveldeck-server/internal/errors"
	"github.com/noveldeck/noveldeck-server/internal/logger"
)

func newTestLibrary(t *testing.T) (*Library, string) {
	t.Helper()
	root := t.TempDir()
	log := logger.New(logger.Config{Writer: io.Discard, Environment: "test", Level: slog.LevelError})
	return New(root, log), root
}

func writeChapter(t *testing.T, root, bookID, name, text string) {
	t.Helper()
	dir := filepath.Join(root, bookID, "chapters")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("creating chapters dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
		t.Fatalf("writing chapter file: %v", err)
	}
}

func TestChapterText(t *testing.T) {
	lib, root := newTestLibrary(t)
	writeChapter(t, root, "book-1", "1.txt", "plain chapter text")

	ch, err := lib.Chapter(context.Background(), "book-1", 1)
	if err != nil {
		t.Fatalf("reading chapter: %v", err)
	}
	if ch.Text != "plain chapter text" {
		t.Errorf("text = %q", ch.Text)
	}
	if ch.HTML {
		t.Error("txt chapter flagged as HTML")
	}
}

func TestChapterHTMLAndPrecedence(t *testing.T) {
	lib, root := newTestLibrary(t)
	writeChapter(t, root, "book-1", "2.html", "<p>markup</p>")

	ch, err := lib.Chapter(context.Background(), "book-1", 2)
	if err != nil {
		t.Fatalf("reading chapter: %v", err)
	}
	if !ch.HTML {
		t.Error("html chapter not flagged")
	}

	// A .txt sibling takes precedence over .html.
	writeChapter(t, root, "book-1", "2.txt", "plain wins")
	ch, err = lib.Chapter(context.Background(), "book-1", 2)
	if err != nil {
		t.Fatalf("re-reading chapter: %v", err)
	}
	if ch.HTML || ch.Text != "plain wins" {
		t.Errorf("txt did not take precedence: html=%v text=%q", ch.HTML, ch.Text)
	}
}

func TestChapterNotFound(t *testing.T) {
	lib, root := newTestLibrary(t)
	writeChapter(t, root, "book-1", "1.txt", "x")

	_, err := lib.Chapter(context.Background(), "book-1", 99)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing chapter err = %v, want NOT_FOUND", err)
	}
	_, err = lib.Chapter(context.Background(), "no-such-book", 1)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing book err = %v, want NOT_FOUND", err)
	}
}

func TestChapterNotConfigured(t *testing.T) {
	log := logger.New(logger.Config{Writer: io.Discard, Environment: "test", Level: slog.LevelError})
	lib := New("", log)

	_, err := lib.Chapter(context.Background(), "book-1", 1)
	if !errors.Is(err, errors.ErrNotConfigured) {
		t.Errorf("err = %v, want NOT_CONFIGURED", err)
	}
}

func TestChapterRejectsTraversal(t *testing.T) {
	lib, _ := newTestLibrary(t)

	for _, id := range []string{"", "../etc", "a/b", `a\b`} {
		if _, err := lib.Chapter(context.Background(), id, 1); !errors.Is(err, errors.ErrValidation) {
			t.Errorf("bookID %q: err = %v, want VALIDATION", id, err)
		}
	}
}

func TestTotalChapters(t *testing.T) {
	lib, root := newTestLibrary(t)
	writeChapter(t, root, "book-1", "1.txt", "a")
	writeChapter(t, root, "book-1", "2.html", "b")
	writeChapter(t, root, "book-1", "2.txt", "b") // same chapter, both extensions
	writeChapter(t, root, "book-1", "notes.md", "ignored")

	n, err := lib.TotalChapters("book-1")
	if err != nil {
		t.Fatalf("counting chapters: %v", err)
	}
	if n != 2 {
		t.Errorf("total = %d, want 2", n)
	}

	if _, err := lib.TotalChapters("missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing book err = %v, want NOT_FOUND", err)
	}
}
