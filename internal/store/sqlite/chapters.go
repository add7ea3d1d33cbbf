package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/noveldeck/noveldeck-server/internal/domain"
	"github.com/noveldeck/noveldeck-server/internal/store"
)

// GetChapter retrieves one cached chapter by its full key.
func (s *Store) GetChapter(ctx context.Context, bookID string, chapter int, mode domain.Mode) (*domain.ProcessedChapter, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT book_id, chapter, mode, content, content_hash, created_at, updated_at
		FROM chapters
		WHERE book_id = ? AND chapter = ? AND mode = ?
	`, bookID, chapter, string(mode))

	pc, err := scanChapter(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting chapter: %w", err)
	}
	return pc, nil
}

// UpsertChapter inserts or replaces a cached chapter. CreatedAt is
// preserved on replace when the caller carried it over; UpdatedAt is
// always set to now.
func (s *Store) UpsertChapter(ctx context.Context, pc *domain.ProcessedChapter) error {
	now := time.Now()
	if pc.CreatedAt.IsZero() {
		pc.CreatedAt = now
	}
	pc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapters (book_id, chapter, mode, content, content_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_id, chapter, mode) DO UPDATE SET
			content = excluded.content,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at
	`, pc.BookID, pc.Chapter, string(pc.Mode), pc.Content, nullString(pc.ContentHash),
		formatTime(pc.CreatedAt), formatTime(pc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upserting chapter: %w", err)
	}
	return nil
}

// DeleteChapter removes one cached chapter. An empty mode removes every
// mode of that chapter.
func (s *Store) DeleteChapter(ctx context.Context, bookID string, chapter int, mode domain.Mode) error {
	var err error
	if mode == "" {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM chapters WHERE book_id = ? AND chapter = ?`, bookID, chapter)
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM chapters WHERE book_id = ? AND chapter = ? AND mode = ?`,
			bookID, chapter, string(mode))
	}
	if err != nil {
		return fmt.Errorf("deleting chapter: %w", err)
	}
	return nil
}

// ClearBook removes all cached chapters of a book, optionally restricted
// to one mode.
func (s *Store) ClearBook(ctx context.Context, bookID string, mode domain.Mode) error {
	var err error
	if mode == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM chapters WHERE book_id = ?`, bookID)
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM chapters WHERE book_id = ? AND mode = ?`, bookID, string(mode))
	}
	if err != nil {
		return fmt.Errorf("clearing book: %w", err)
	}
	return nil
}

// ClearAllChapters empties the chapter cache.
func (s *Store) ClearAllChapters(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chapters`); err != nil {
		return fmt.Errorf("clearing chapters: %w", err)
	}
	return nil
}

// ChapterStats returns cache-wide counters.
func (s *Store) ChapterStats(ctx context.Context) (*domain.ChapterStats, error) {
	var stats domain.ChapterStats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chapters`).Scan(&stats.TotalChapters)
	if err != nil {
		return nil, fmt.Errorf("counting chapters: %w", err)
	}
	return &stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChapter(row scanner) (*domain.ProcessedChapter, error) {
	var (
		pc                   domain.ProcessedChapter
		mode                 string
		hash                 sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&pc.BookID, &pc.Chapter, &mode, &pc.Content, &hash, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	pc.Mode = domain.Mode(mode)
	pc.ContentHash = stringValue(hash)
	pc.CreatedAt = parseTime(createdAt)
	pc.UpdatedAt = parseTime(updatedAt)
	return &pc, nil
}
