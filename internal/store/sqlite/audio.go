package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/noveldeck/noveldeck-server/internal/domain"
)

// UpsertAudioSegment records one synthesized sentence in the audio index.
func (s *Store) UpsertAudioSegment(ctx context.Context, seg *domain.AudioSegment) error {
	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO audio_segments (task_id, idx, sentence, path, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, seg.TaskID, seg.Index, seg.Sentence, seg.Path, formatTime(seg.CreatedAt))
	if err != nil {
		return fmt.Errorf("upserting audio segment: %w", err)
	}
	return nil
}

// ListAudioSegments returns a task's segments in playback order.
func (s *Store) ListAudioSegments(ctx context.Context, taskID string) ([]*domain.AudioSegment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, idx, sentence, path, created_at
		FROM audio_segments
		WHERE task_id = ?
		ORDER BY idx
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("listing audio segments: %w", err)
	}
	defer rows.Close()

	var segments []*domain.AudioSegment
	for rows.Next() {
		var (
			seg       domain.AudioSegment
			createdAt string
		)
		if err := rows.Scan(&seg.TaskID, &seg.Index, &seg.Sentence, &seg.Path, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audio segment: %w", err)
		}
		seg.CreatedAt = parseTime(createdAt)
		segments = append(segments, &seg)
	}
	return segments, rows.Err()
}

// DeleteAudioSegments removes one task's index entries.
func (s *Store) DeleteAudioSegments(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM audio_segments WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("deleting audio segments: %w", err)
	}
	return nil
}

// ClearAudioSegments empties the audio index.
func (s *Store) ClearAudioSegments(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM audio_segments`); err != nil {
		return fmt.Errorf("clearing audio segments: %w", err)
	}
	return nil
}
