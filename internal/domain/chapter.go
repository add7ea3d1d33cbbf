package domain

import (
	"strconv"
	"time"
)

// Mode identifies the processing variant requested for a chapter.
// Beyond the built-in modes, any user-defined action key is a valid mode.
type Mode string

const (
	// ModeRaw returns chapter text exactly as stored on disk, no AI call.
	ModeRaw Mode = "raw"
	// ModeTranslate translates the chapter into the reader's language.
	ModeTranslate Mode = "translate"
	// ModeSummary condenses the chapter.
	ModeSummary Mode = "summary"
)

// BuiltIn returns true for the modes that ship with the application
// (as opposed to user-defined action keys).
func (m Mode) BuiltIn() bool {
	switch m {
	case ModeRaw, ModeTranslate, ModeSummary:
		return true
	default:
		return false
	}
}

// ProcessedChapter is the cached result of running a chapter through an
// AI action. At most one row exists per (BookID, Chapter, Mode) - writes
// are upserts.
type ProcessedChapter struct {
	BookID      string    `json:"book_id"`
	Chapter     int       `json:"chapter"`
	Mode        Mode      `json:"mode"`
	Content     string    `json:"content"` // HTML-lite fragment
	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChapterKey uniquely identifies a processed chapter request.
// It is the coalescing key of the content processor and the primary key
// of the chapter cache.
type ChapterKey struct {
	BookID  string
	Chapter int
	Mode    Mode
}

// String renders the key in the book|chapter|mode form used for
// singleflight grouping and logging.
func (k ChapterKey) String() string {
	return k.BookID + "|" + strconv.Itoa(k.Chapter) + "|" + string(k.Mode)
}

// ChapterStats summarizes the chapter cache for the settings screen.
type ChapterStats struct {
	TotalChapters int `json:"total_chapters"`
}
