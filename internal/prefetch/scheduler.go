// Package prefetch warms the chapter cache ahead of the reader. A run
// covers the next N chapters after the current one, nearest first, and
// backs off between provider calls so interactive requests stay snappy.
package prefetch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/noveldeck/noveldeck-server/internal/config"
	"github.com/noveldeck/noveldeck-server/internal/domain"
	"github.com/noveldeck/noveldeck-server/internal/errors"
	"github.com/noveldeck/noveldeck-server/internal/logger"
	"github.com/noveldeck/noveldeck-server/internal/sse"
	"github.com/noveldeck/noveldeck-server/internal/store"
)

// ContentSource is the slice of the content pipeline the scheduler
// needs: resolve a chapter and peek at the cache.
type ContentSource interface {
	GetContent(ctx context.Context, bookID string, chapter int, mode domain.Mode) (string, error)
	CacheHit(ctx context.Context, bookID string, chapter int, mode domain.Mode) bool
}

// Scheduler prefetches upcoming chapters. At most one run is active;
// starting a new run aborts the previous one, since the reader has
// moved and the old window is stale.
type Scheduler struct {
	source  ContentSource
	store   store.Store
	emitter store.EventEmitter
	cfg     config.PrefetchConfig
	log     *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewScheduler creates a prefetch scheduler.
func NewScheduler(source ContentSource, st store.Store, emitter store.EventEmitter, cfg config.PrefetchConfig, log *logger.Logger) *Scheduler {
	return &Scheduler{
		source:  source,
		store:   st,
		emitter: emitter,
		cfg:     cfg,
		log:     log,
	}
}

// Prefetch starts warming the window after fromChapter in the
// background and returns immediately. An in-flight run is aborted
// first.
func (s *Scheduler) Prefetch(bookID string, fromChapter int, mode domain.Mode, totalChapters int) {
	tasks := s.buildWindow(bookID, fromChapter, mode, totalChapters)
	if len(tasks) == 0 {
		return
	}

	s.Abort()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.running = true
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()
		s.run(ctx, bookID, mode, tasks)
	}()
}

// Abort cancels the active run, if any, and waits for it to stop.
func (s *Scheduler) Abort() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Running reports whether a prefetch run is in flight.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// buildWindow produces the tasks for (fromChapter, fromChapter+N],
// clamped to the book, nearest chapter first.
func (s *Scheduler) buildWindow(bookID string, fromChapter int, mode domain.Mode, totalChapters int) []*domain.PrefetchTask {
	last := fromChapter + s.cfg.Count
	if last > totalChapters {
		last = totalChapters
	}

	var tasks []*domain.PrefetchTask
	for ch := fromChapter + 1; ch <= last; ch++ {
		tasks = append(tasks, domain.NewPrefetchTask(bookID, ch, mode, ch-fromChapter))
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority < tasks[j].Priority
	})
	return tasks
}

// run works the window in batches of MaxConcurrent. A critical error
// (missing credentials, rejected key) aborts the whole run; transient
// failures mark the one task failed and move on. Failed tasks are not
// retried within a run.
func (s *Scheduler) run(ctx context.Context, bookID string, mode domain.Mode, tasks []*domain.PrefetchTask) {
	total := len(tasks)
	runID := uuid.NewString()
	s.log.Info("prefetch run starting", "run_id", runID, "book_id", bookID, "mode", mode, "tasks", total)

	var (
		completedMu sync.Mutex
		completed   int
		criticalErr error
	)

	g, runCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrent)

	for _, task := range tasks {
		g.Go(func() error {
			if runCtx.Err() != nil {
				return runCtx.Err()
			}
			task.MarkProcessing()

			hit := s.source.CacheHit(runCtx, task.BookID, task.Chapter, task.Mode)
			_, err := s.source.GetContent(runCtx, task.BookID, task.Chapter, task.Mode)
			if err != nil {
				task.MarkFailed(err.Error())
				if errors.Critical(err) {
					completedMu.Lock()
					criticalErr = err
					completedMu.Unlock()
					// Returning the error cancels runCtx for the rest of the batch.
					return err
				}
				s.log.Warn("prefetch task failed",
					"book_id", task.BookID, "chapter", task.Chapter, "error", err)
				return nil
			}
			task.MarkCompleted()

			completedMu.Lock()
			completed++
			progress := completed
			completedMu.Unlock()

			s.emitter.Emit(sse.NewPrefetchEvent(sse.EventPrefetchProgress, sse.PrefetchEventData{
				BookID:    task.BookID,
				Mode:      string(task.Mode),
				Chapter:   task.Chapter,
				Completed: progress,
				Total:     total,
			}))

			// Generated chapters pause before the next task; cache hits
			// cost nothing and skip the delay.
			if !hit {
				select {
				case <-time.After(s.cfg.TaskDelay):
				case <-runCtx.Done():
				}
			}
			return nil
		})
	}
	err := g.Wait()

	switch {
	case criticalErr != nil:
		s.log.Error("prefetch run aborted", "run_id", runID, "book_id", bookID, "error", criticalErr)
		s.emitter.Emit(sse.NewPrefetchEvent(sse.EventPrefetchFailed, sse.PrefetchEventData{
			BookID:    bookID,
			Mode:      string(mode),
			Completed: completed,
			Total:     total,
			Error:     criticalErr.Error(),
		}))
	case err != nil && ctx.Err() != nil:
		s.log.Info("prefetch run canceled", "run_id", runID, "book_id", bookID, "completed", completed)
	default:
		s.log.Info("prefetch run completed", "run_id", runID, "book_id", bookID, "completed", completed, "total", total)
		s.emitter.Emit(sse.NewPrefetchEvent(sse.EventPrefetchCompleted, sse.PrefetchEventData{
			BookID:    bookID,
			Mode:      string(mode),
			Completed: completed,
			Total:     total,
		}))
	}
}
