package prefetch

import (
	"context"
	"sync"
	"time"

	"github.com/noveldeck/noveldeck-server/internal/domain"
	"github.com/noveldeck/noveldeck-server/internal/errors"
	"github.com/noveldeck/noveldeck-server/internal/logger"
	"github.com/noveldeck/noveldeck-server/internal/sse"
	"github.com/noveldeck/noveldeck-server/internal/store"
)

// Generator runs whole-book generation with persisted progress, so a
// run interrupted by shutdown or a critical error resumes where it
// stopped instead of regenerating finished chapters.
type Generator struct {
	source    ContentSource
	store     store.Store
	emitter   store.EventEmitter
	taskDelay time.Duration
	log       *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewGenerator creates a whole-book generator. taskDelay spaces
// provider calls the same way the prefetch window does.
func NewGenerator(source ContentSource, st store.Store, emitter store.EventEmitter, taskDelay time.Duration, log *logger.Logger) *Generator {
	return &Generator{
		source:    source,
		store:     st,
		emitter:   emitter,
		taskDelay: taskDelay,
		log:       log,
	}
}

// Start launches (or resumes) generation of every chapter of a book in
// the background. A run already in flight for any book is aborted
// first; generation is deliberately single-file.
func (g *Generator) Start(bookID string, mode domain.Mode, totalChapters int) error {
	if totalChapters < 1 {
		return errors.Validation("book has no chapters")
	}

	g.Abort()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	g.mu.Lock()
	g.cancel = cancel
	g.done = done
	g.mu.Unlock()

	go func() {
		defer close(done)
		g.run(ctx, bookID, mode, totalChapters)
	}()
	return nil
}

// Abort cancels the active run, if any, and waits for it to persist
// its progress and stop.
func (g *Generator) Abort() {
	g.mu.Lock()
	cancel, done := g.cancel, g.done
	g.cancel, g.done = nil, nil
	g.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Progress returns the persisted state of a book's generation run.
func (g *Generator) Progress(ctx context.Context, bookID string) (*domain.AutoGenerateProgress, error) {
	return g.store.GetProgress(ctx, bookID)
}

func (g *Generator) run(ctx context.Context, bookID string, mode domain.Mode, totalChapters int) {
	progress, err := g.store.GetProgress(ctx, bookID)
	if err != nil || progress.Mode != mode || progress.TotalChapters != totalChapters {
		// Fresh run; a stale row for a different mode or chapter count
		// is replaced rather than resumed.
		progress = &domain.AutoGenerateProgress{
			BookID:        bookID,
			Mode:          mode,
			TotalChapters: totalChapters,
		}
	}
	progress.IsRunning = true
	progress.LastError = ""
	g.persist(ctx, progress)

	for ch := 1; ch <= totalChapters; ch++ {
		if ctx.Err() != nil {
			g.stopRun(progress, "")
			return
		}
		if progress.IsCompleted(ch) {
			continue
		}
		progress.CurrentChapter = ch
		g.persist(ctx, progress)

		hit := g.source.CacheHit(ctx, bookID, ch, mode)
		if _, err := g.source.GetContent(ctx, bookID, ch, mode); err != nil {
			if errors.Critical(err) || ctx.Err() != nil {
				g.stopRun(progress, err.Error())
				g.emitter.Emit(sse.NewPrefetchEvent(sse.EventPrefetchFailed, sse.PrefetchEventData{
					BookID:    bookID,
					Mode:      string(mode),
					Chapter:   ch,
					Completed: len(progress.CompletedChapters),
					Total:     totalChapters,
					Error:     err.Error(),
				}))
				return
			}
			// Transient failure: skip this chapter, a later run picks it up.
			progress.LastError = err.Error()
			g.persist(ctx, progress)
			continue
		}

		progress.MarkCompleted(ch)
		g.persist(ctx, progress)

		g.emitter.Emit(sse.NewPrefetchEvent(sse.EventPrefetchProgress, sse.PrefetchEventData{
			BookID:    bookID,
			Mode:      string(mode),
			Chapter:   ch,
			Completed: len(progress.CompletedChapters),
			Total:     totalChapters,
		}))

		if !hit {
			select {
			case <-time.After(g.taskDelay):
			case <-ctx.Done():
			}
		}
	}

	if progress.Done() {
		// Completion removes the bookkeeping row entirely.
		g.deleteProgress(bookID)
		g.emitter.Emit(sse.NewPrefetchEvent(sse.EventPrefetchCompleted, sse.PrefetchEventData{
			BookID:    bookID,
			Mode:      string(mode),
			Completed: totalChapters,
			Total:     totalChapters,
		}))
		return
	}
	g.stopRun(progress, progress.LastError)
}

func (g *Generator) stopRun(progress *domain.AutoGenerateProgress, errMsg string) {
	progress.IsRunning = false
	if errMsg != "" {
		progress.LastError = errMsg
	}
	// Persist with a fresh context; the run context is already canceled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	g.persist(ctx, progress)
}

// persist writes resume state; a failure loses at most the ability to
// resume, so the run keeps going and the error is only logged.
func (g *Generator) persist(ctx context.Context, progress *domain.AutoGenerateProgress) {
	if err := g.store.UpsertProgress(ctx, progress); err != nil {
		g.log.Warn("persisting generation progress failed",
			"book_id", progress.BookID, "chapter", progress.CurrentChapter, "error", err)
	}
}

func (g *Generator) deleteProgress(bookID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.store.DeleteProgress(ctx, bookID); err != nil {
		g.log.Warn("deleting generation progress failed", "book_id", bookID, "error", err)
	}
}
