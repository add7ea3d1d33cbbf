// Package books reads raw chapter text from the on-disk library.
// A book is a directory under the configured library path with a
// chapters/ subdirectory holding one file per chapter, named by number
// with a .txt or .html extension.
package books

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/noveldeck/noveldeck-server/internal/errors"
	"github.com/noveldeck/noveldeck-server/internal/logger"
)

// RawChapter is chapter text as stored on disk, before any processing.
type RawChapter struct {
	BookID  string
	Chapter int
	Text    string
	HTML    bool
}

// Library resolves raw chapters from the configured books directory.
type Library struct {
	path string
	log  *logger.Logger
}

// New creates a library rooted at path. An empty path is allowed at
// startup; reads against it fail with a NOT_CONFIGURED error.
func New(path string, log *logger.Logger) *Library {
	return &Library{path: path, log: log}
}

// Chapter reads one raw chapter. A .txt file wins over an .html file
// with the same number. Missing books and chapters both surface as
// NOT_FOUND so the reader sees "chapter unavailable" either way.
func (l *Library) Chapter(ctx context.Context, bookID string, chapter int) (*RawChapter, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled("chapter read canceled")
	}
	dir, err := l.chaptersDir(bookID)
	if err != nil {
		return nil, err
	}
	if chapter < 1 {
		return nil, errors.Validation("chapter number must be positive")
	}

	base := filepath.Join(dir, strconv.Itoa(chapter))
	for _, ext := range []string{".txt", ".html"} {
		data, err := os.ReadFile(base + ext)
		if err == nil {
			return &RawChapter{
				BookID:  bookID,
				Chapter: chapter,
				Text:    string(data),
				HTML:    ext == ".html",
			}, nil
		}
		if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, errors.CodeInternal, "reading chapter %d of %s", chapter, bookID)
		}
	}
	return nil, errors.NotFound("chapter unavailable")
}

// TotalChapters counts the chapter files of a book. Used by the
// prefetch scheduler to clamp its window and by whole-book generation.
func (l *Library) TotalChapters(bookID string) (int, error) {
	dir, err := l.chaptersDir(bookID)
	if err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.NotFoundf("book %s not found", bookID)
		}
		return 0, errors.Wrapf(err, errors.CodeInternal, "listing chapters of %s", bookID)
	}

	seen := make(map[int]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".txt" && ext != ".html" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, ext))
		if err != nil || n < 1 {
			continue
		}
		seen[n] = true
	}
	return len(seen), nil
}

// chaptersDir validates the book ID and returns its chapters directory.
func (l *Library) chaptersDir(bookID string) (string, error) {
	if l.path == "" {
		return "", errors.NotConfigured("library path is not configured")
	}
	if bookID == "" || strings.ContainsAny(bookID, `/\`) || bookID != filepath.Base(bookID) {
		return "", errors.Validation("invalid book id")
	}
	return filepath.Join(l.path, bookID, "chapters"), nil
}
