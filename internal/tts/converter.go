package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/avast/retry-go/v4"

	"github.com/noveldeck/noveldeck-server/internal/config"
	"github.com/noveldeck/noveldeck-server/internal/domain"
	"github.com/noveldeck/noveldeck-server/internal/errors"
	"github.com/noveldeck/noveldeck-server/internal/logger"
	"github.com/noveldeck/noveldeck-server/internal/sse"
	"github.com/noveldeck/noveldeck-server/internal/store"
)

// Synthesizer is the per-sentence synthesis backend.
type Synthesizer interface {
	Synthesize(ctx context.Context, sentence string) ([]byte, error)
}

// Converter runs TTS conversion: one sentence at a time, in order, so
// the playback queue receives segments in increasing index order.
// At most one run is active at a time; starting a run cancels any run
// still in flight, since the reader has moved on.
type Converter struct {
	client  Synthesizer
	store   store.Store
	emitter store.EventEmitter
	cfg     config.TTSConfig
	log     *logger.Logger

	mu     sync.Mutex
	active *conversionRun
}

// conversionRun identifies one Convert invocation, so a finishing run
// only releases its own cancel handle.
type conversionRun struct {
	cancel context.CancelFunc
}

// NewConverter creates the conversion pipeline. The cache directory is
// created eagerly so the first run does not race its own writes.
func NewConverter(client Synthesizer, st store.Store, emitter store.EventEmitter, cfg config.TTSConfig, log *logger.Logger) (*Converter, error) {
	if err := os.MkdirAll(cfg.CachePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating audio cache dir: %w", err)
	}
	return &Converter{
		client:  client,
		store:   st,
		emitter: emitter,
		cfg:     cfg,
		log:     log,
	}, nil
}

// Convert synthesizes the sentences of one task sequentially and
// returns the audio file paths in sentence order. A cancelled run (via
// ctx or Cancel) returns the partial result without error; a critical
// configuration error abandons the run and returns an empty result
// without error, leaving the detail in the emitted failure event.
func (c *Converter) Convert(ctx context.Context, taskID string, sentences []string) ([]string, error) {
	if taskID == "" {
		return nil, errors.Validation("task id is required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	run := &conversionRun{cancel: cancel}
	c.mu.Lock()
	if c.active != nil {
		c.active.cancel()
	}
	c.active = run
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.active == run {
			c.active = nil
		}
		c.mu.Unlock()
	}()

	c.log.Info("conversion starting", "task_id", taskID, "sentences", len(sentences))

	var paths []string
	for index, sentence := range sentences {
		if runCtx.Err() != nil {
			c.log.Info("conversion canceled", "task_id", taskID, "completed", len(paths))
			return paths, nil
		}

		path := c.segmentPath(taskID, index)
		if _, err := os.Stat(path); err == nil {
			// Disk hit: the file is the source of truth, no synthesis.
			paths = append(paths, path)
			c.emitReady(taskID, index, sentence, path)
			continue
		}

		audio, err := c.synthesizeWithRetry(runCtx, sentence)
		if err != nil {
			if errors.Is(err, errors.ErrCanceled) {
				return paths, nil
			}
			if errors.Critical(err) {
				c.log.Error("conversion aborted", "task_id", taskID, "sentence", index, "error", err)
				c.emitter.Emit(sse.NewAudioEvent(sse.EventAudioFailed, sse.AudioEventData{
					TaskID: taskID,
					Index:  index,
					Error:  err.Error(),
				}))
				return nil, nil
			}
			// A sentence that keeps failing is skipped; the rest of the
			// run continues.
			c.log.Warn("sentence synthesis failed", "task_id", taskID, "sentence", index, "error", err)
			c.emitter.Emit(sse.NewAudioEvent(sse.EventAudioFailed, sse.AudioEventData{
				TaskID:   taskID,
				Index:    index,
				Sentence: sentence,
				Error:    err.Error(),
			}))
			continue
		}

		if err := os.WriteFile(path, audio, 0o644); err != nil {
			c.log.Error("writing audio file failed", "path", path, "error", err)
			continue
		}
		if err := c.store.UpsertAudioSegment(runCtx, &domain.AudioSegment{
			TaskID:   taskID,
			Index:    index,
			Sentence: sentence,
			Path:     path,
		}); err != nil {
			c.log.Warn("indexing audio segment failed", "task_id", taskID, "index", index, "error", err)
		}

		paths = append(paths, path)
		c.emitReady(taskID, index, sentence, path)
	}

	c.log.Info("conversion completed", "task_id", taskID, "segments", len(paths))
	return paths, nil
}

// Cancel stops the active conversion run, if any. The run returns its
// partial result to its caller.
func (c *Converter) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		c.active.cancel()
	}
}

// ClearCache removes every cached audio file and recreates the empty
// cache directory, plus the database index.
func (c *Converter) ClearCache(ctx context.Context) error {
	c.Cancel()

	if err := os.RemoveAll(c.cfg.CachePath); err != nil {
		return fmt.Errorf("removing audio cache: %w", err)
	}
	if err := os.MkdirAll(c.cfg.CachePath, 0o755); err != nil {
		return fmt.Errorf("recreating audio cache: %w", err)
	}
	return c.store.ClearAudioSegments(ctx)
}

// ClearTask removes one task's audio files and index entries.
func (c *Converter) ClearTask(ctx context.Context, taskID string) error {
	entries, err := os.ReadDir(c.cfg.CachePath)
	if err != nil {
		return fmt.Errorf("listing audio cache: %w", err)
	}
	prefix := taskID + "_"
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		if err := os.Remove(filepath.Join(c.cfg.CachePath, entry.Name())); err != nil {
			c.log.Warn("removing audio file failed", "file", entry.Name(), "error", err)
		}
	}
	return c.store.DeleteAudioSegments(ctx, taskID)
}

// Segments lists a task's synthesized segments in playback order.
func (c *Converter) Segments(ctx context.Context, taskID string) ([]*domain.AudioSegment, error) {
	return c.store.ListAudioSegments(ctx, taskID)
}

func (c *Converter) synthesizeWithRetry(ctx context.Context, sentence string) ([]byte, error) {
	attempts := uint(c.cfg.MaxRetries)
	if attempts < 1 {
		attempts = 1
	}
	return retry.DoWithData(
		func() ([]byte, error) {
			return c.client.Synthesize(ctx, sentence)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(errors.Retryable),
	)
}

func (c *Converter) emitReady(taskID string, index int, sentence, path string) {
	c.emitter.Emit(sse.NewAudioEvent(sse.EventAudioReady, sse.AudioEventData{
		TaskID:   taskID,
		Index:    index,
		Sentence: sentence,
		Path:     path,
	}))
}

func (c *Converter) segmentPath(taskID string, index int) string {
	name := fmt.Sprintf("%s_%d.%s", taskID, index, c.cfg.Format)
	return filepath.Join(c.cfg.CachePath, name)
}
