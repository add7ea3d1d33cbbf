package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/noveldeck/noveldeck-server/internal/domain"
	"github.com/noveldeck/noveldeck-server/internal/logger"
	"github.com/noveldeck/noveldeck-server/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	log := logger.New(logger.Config{
		Writer:      io.Discard,
		Environment: "test",
		Level:       slog.LevelError,
	})

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, log)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestChapterRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pc := &domain.ProcessedChapter{
		BookID:  "book-1",
		Chapter: 3,
		Mode:    domain.ModeTranslate,
		Content: "<p>translated text</p>",
	}
	if err := s.UpsertChapter(ctx, pc); err != nil {
		t.Fatalf("upserting chapter: %v", err)
	}

	got, err := s.GetChapter(ctx, "book-1", 3, domain.ModeTranslate)
	if err != nil {
		t.Fatalf("getting chapter: %v", err)
	}
	if got.Content != pc.Content {
		t.Errorf("content = %q, want %q", got.Content, pc.Content)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestChapterUpsertReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &domain.ProcessedChapter{
		BookID: "book-1", Chapter: 1, Mode: domain.ModeSummary, Content: "v1",
	}
	if err := s.UpsertChapter(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second := &domain.ProcessedChapter{
		BookID: "book-1", Chapter: 1, Mode: domain.ModeSummary, Content: "v2",
	}
	if err := s.UpsertChapter(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.GetChapter(ctx, "book-1", 1, domain.ModeSummary)
	if err != nil {
		t.Fatalf("getting chapter: %v", err)
	}
	if got.Content != "v2" {
		t.Errorf("content = %q, want v2", got.Content)
	}

	stats, err := s.ChapterStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalChapters != 1 {
		t.Errorf("total = %d, want 1 (upsert must not duplicate)", stats.TotalChapters)
	}
}

func TestGetChapterNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetChapter(context.Background(), "missing", 1, domain.ModeRaw)
	if err != store.ErrNotFound {
		t.Errorf("err = %v, want store.ErrNotFound", err)
	}
}

func TestDeleteChapterModes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, mode := range []domain.Mode{domain.ModeTranslate, domain.ModeSummary} {
		if err := s.UpsertChapter(ctx, &domain.ProcessedChapter{
			BookID: "book-1", Chapter: 5, Mode: mode, Content: "x",
		}); err != nil {
			t.Fatalf("upserting %s: %v", mode, err)
		}
	}

	// Mode-scoped delete keeps the other mode.
	if err := s.DeleteChapter(ctx, "book-1", 5, domain.ModeTranslate); err != nil {
		t.Fatalf("deleting translate: %v", err)
	}
	if _, err := s.GetChapter(ctx, "book-1", 5, domain.ModeTranslate); err != store.ErrNotFound {
		t.Errorf("translate still present after delete")
	}
	if _, err := s.GetChapter(ctx, "book-1", 5, domain.ModeSummary); err != nil {
		t.Errorf("summary gone after mode-scoped delete: %v", err)
	}

	// Empty mode wipes the remaining modes.
	if err := s.DeleteChapter(ctx, "book-1", 5, ""); err != nil {
		t.Fatalf("deleting all modes: %v", err)
	}
	if _, err := s.GetChapter(ctx, "book-1", 5, domain.ModeSummary); err != store.ErrNotFound {
		t.Errorf("summary still present after delete-all")
	}
}

func TestClearBookAndAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []*domain.ProcessedChapter{
		{BookID: "book-1", Chapter: 1, Mode: domain.ModeTranslate, Content: "a"},
		{BookID: "book-1", Chapter: 2, Mode: domain.ModeSummary, Content: "b"},
		{BookID: "book-2", Chapter: 1, Mode: domain.ModeTranslate, Content: "c"},
	}
	for _, pc := range seed {
		if err := s.UpsertChapter(ctx, pc); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}

	if err := s.ClearBook(ctx, "book-1", domain.ModeSummary); err != nil {
		t.Fatalf("clearing book mode: %v", err)
	}
	stats, _ := s.ChapterStats(ctx)
	if stats.TotalChapters != 2 {
		t.Errorf("after mode clear total = %d, want 2", stats.TotalChapters)
	}

	if err := s.ClearBook(ctx, "book-1", ""); err != nil {
		t.Fatalf("clearing book: %v", err)
	}
	stats, _ = s.ChapterStats(ctx)
	if stats.TotalChapters != 1 {
		t.Errorf("after book clear total = %d, want 1", stats.TotalChapters)
	}

	if err := s.ClearAllChapters(ctx); err != nil {
		t.Fatalf("clearing all: %v", err)
	}
	stats, _ = s.ChapterStats(ctx)
	if stats.TotalChapters != 0 {
		t.Errorf("after clear-all total = %d, want 0", stats.TotalChapters)
	}
}

func TestProgressRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &domain.AutoGenerateProgress{
		BookID:        "book-1",
		Mode:          domain.ModeTranslate,
		TotalChapters: 10,
		IsRunning:     true,
	}
	p.MarkCompleted(3)
	p.MarkCompleted(1)
	p.MarkCompleted(2)

	if err := s.UpsertProgress(ctx, p); err != nil {
		t.Fatalf("upserting progress: %v", err)
	}

	got, err := s.GetProgress(ctx, "book-1")
	if err != nil {
		t.Fatalf("getting progress: %v", err)
	}
	if !got.IsRunning {
		t.Error("IsRunning not persisted")
	}
	if got.NextChapter() != 4 {
		t.Errorf("NextChapter = %d, want 4", got.NextChapter())
	}
	if len(got.CompletedChapters) != 3 {
		t.Errorf("completed = %v, want 3 entries", got.CompletedChapters)
	}

	if err := s.DeleteProgress(ctx, "book-1"); err != nil {
		t.Fatalf("deleting progress: %v", err)
	}
	if _, err := s.GetProgress(ctx, "book-1"); err != store.ErrNotFound {
		t.Errorf("err = %v, want store.ErrNotFound", err)
	}
}

func TestProgressNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetProgress(context.Background(), "missing")
	if err != store.ErrNotFound {
		t.Errorf("err = %v, want store.ErrNotFound", err)
	}
}

func TestAudioSegmentIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Inserted out of order on purpose.
	for _, idx := range []int{2, 0, 1} {
		seg := &domain.AudioSegment{
			TaskID:   "task-1",
			Index:    idx,
			Sentence: "sentence",
			Path:     filepath.Join("cache", "audio", "task-1", "seg.mp3"),
		}
		if err := s.UpsertAudioSegment(ctx, seg); err != nil {
			t.Fatalf("upserting segment %d: %v", idx, err)
		}
	}
	if err := s.UpsertAudioSegment(ctx, &domain.AudioSegment{
		TaskID: "task-2", Index: 0, Sentence: "other", Path: "other.mp3",
	}); err != nil {
		t.Fatalf("upserting other task: %v", err)
	}

	segs, err := s.ListAudioSegments(ctx, "task-1")
	if err != nil {
		t.Fatalf("listing segments: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("len = %d, want 3", len(segs))
	}
	for i, seg := range segs {
		if seg.Index != i {
			t.Errorf("segment %d has index %d, want playback order", i, seg.Index)
		}
	}

	if err := s.DeleteAudioSegments(ctx, "task-1"); err != nil {
		t.Fatalf("deleting segments: %v", err)
	}
	segs, _ = s.ListAudioSegments(ctx, "task-1")
	if len(segs) != 0 {
		t.Errorf("task-1 segments remain after delete")
	}
	segs, _ = s.ListAudioSegments(ctx, "task-2")
	if len(segs) != 1 {
		t.Errorf("task-2 segments affected by scoped delete")
	}

	if err := s.ClearAudioSegments(ctx); err != nil {
		t.Fatalf("clearing segments: %v", err)
	}
	segs, _ = s.ListAudioSegments(ctx, "task-2")
	if len(segs) != 0 {
		t.Errorf("segments remain after clear-all")
	}
}
