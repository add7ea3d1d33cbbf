// Package store defines the persistence interface for the NovelDeck server.
package store

import (
	"context"

	"github.com/noveldeck/noveldeck-server/internal/domain"
)

// Store defines the interface for all persistence operations.
type Store interface {
	// Lifecycle
	Close() error

	// Processed chapters
	GetChapter(ctx context.Context, bookID string, chapter int, mode domain.Mode) (*domain.ProcessedChapter, error)
	UpsertChapter(ctx context.Context, pc *domain.ProcessedChapter) error
	// DeleteChapter removes cached content for one chapter. Empty mode
	// deletes every mode of that chapter.
	DeleteChapter(ctx context.Context, bookID string, chapter int, mode domain.Mode) error
	// ClearBook removes cached content for a whole book, optionally
	// restricted to one mode.
	ClearBook(ctx context.Context, bookID string, mode domain.Mode) error
	ClearAllChapters(ctx context.Context) error
	ChapterStats(ctx context.Context) (*domain.ChapterStats, error)

	// Auto-generate progress
	GetProgress(ctx context.Context, bookID string) (*domain.AutoGenerateProgress, error)
	UpsertProgress(ctx context.Context, p *domain.AutoGenerateProgress) error
	DeleteProgress(ctx context.Context, bookID string) error

	// Audio segment index
	UpsertAudioSegment(ctx context.Context, seg *domain.AudioSegment) error
	ListAudioSegments(ctx context.Context, taskID string) ([]*domain.AudioSegment, error)
	DeleteAudioSegments(ctx context.Context, taskID string) error
	ClearAudioSegments(ctx context.Context) error
}

// EventEmitter is the interface for emitting SSE events.
// The pipelines use this to broadcast progress without depending on SSE
// implementation details.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}
