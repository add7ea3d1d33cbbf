package sqlite

import (
	"context"
	"database/sql"
	"encoding/json/v2"
	"fmt"
	"time"

	"github.com/noveldeck/noveldeck-server/internal/domain"
	"github.com/noveldeck/noveldeck-server/internal/store"
)

// GetProgress retrieves the auto-generate progress for a book.
func (s *Store) GetProgress(ctx context.Context, bookID string) (*domain.AutoGenerateProgress, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT book_id, mode, current_chapter, total_chapters, is_running,
		       completed_chapters, last_error, updated_at
		FROM auto_generate_progress
		WHERE book_id = ?
	`, bookID)

	var (
		p               domain.AutoGenerateProgress
		mode, completed string
		lastErr         sql.NullString
		updatedAt       string
	)
	err := row.Scan(&p.BookID, &mode, &p.CurrentChapter, &p.TotalChapters,
		&p.IsRunning, &completed, &lastErr, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting progress: %w", err)
	}

	p.Mode = domain.Mode(mode)
	p.LastError = stringValue(lastErr)
	p.UpdatedAt = parseTime(updatedAt)
	if err := json.Unmarshal([]byte(completed), &p.CompletedChapters); err != nil {
		return nil, fmt.Errorf("decoding completed chapters: %w", err)
	}
	return &p, nil
}

// UpsertProgress inserts or replaces the progress row for a book.
func (s *Store) UpsertProgress(ctx context.Context, p *domain.AutoGenerateProgress) error {
	p.UpdatedAt = time.Now()

	completed := p.CompletedChapters
	if completed == nil {
		completed = []int{}
	}
	data, err := json.Marshal(completed)
	if err != nil {
		return fmt.Errorf("encoding completed chapters: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO auto_generate_progress
			(book_id, mode, current_chapter, total_chapters, is_running,
			 completed_chapters, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.BookID, string(p.Mode), p.CurrentChapter, p.TotalChapters, p.IsRunning,
		string(data), nullString(p.LastError), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upserting progress: %w", err)
	}
	return nil
}

// DeleteProgress removes the progress row for a book.
func (s *Store) DeleteProgress(ctx context.Context, bookID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM auto_generate_progress WHERE book_id = ?`, bookID)
	if err != nil {
		return fmt.Errorf("deleting progress: %w", err)
	}
	return nil
}
