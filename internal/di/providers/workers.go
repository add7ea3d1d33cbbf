package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/noveldeck/noveldeck-server/internal/actions"
	"github.com/noveldeck/noveldeck-server/internal/config"
	"github.com/noveldeck/noveldeck-server/internal/content"
	"github.com/noveldeck/noveldeck-server/internal/logger"
	"github.com/noveldeck/noveldeck-server/internal/prefetch"
	"github.com/noveldeck/noveldeck-server/internal/tts"
)

// ActionsWatcherHandle wraps the actions file watcher with shutdown capability.
type ActionsWatcherHandle struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *ActionsWatcherHandle) Shutdown() error {
	h.cancel()
	return nil
}

// ProvideActionsWatcher provides the live-reload watcher for the
// actions file.
func ProvideActionsWatcher(i do.Injector) (*ActionsWatcherHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	registry := do.MustInvoke[*actions.Registry](i)

	// No actions file configured, nothing to watch.
	if registry.Path() == "" {
		log.Info("Actions watcher disabled, no actions file configured")
		return &ActionsWatcherHandle{cancel: func() {}}, nil
	}

	w, err := actions.NewWatcher(registry, log)
	if err != nil {
		return nil, err
	}

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)

	log.Info("Actions watcher started", "path", registry.Path())

	return &ActionsWatcherHandle{cancel: cancel}, nil
}

// SchedulerHandle wraps the prefetch scheduler with shutdown capability.
type SchedulerHandle struct {
	*prefetch.Scheduler
}

// Shutdown implements do.Shutdownable.
func (h *SchedulerHandle) Shutdown() error {
	h.Abort()
	return nil
}

// ProvideScheduler provides the prefetch scheduler.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	processor := do.MustInvoke[*content.Processor](i)

	scheduler := prefetch.NewScheduler(processor, storeHandle.Store, sseHandle.Manager, cfg.Prefetch, log)

	return &SchedulerHandle{Scheduler: scheduler}, nil
}

// GeneratorHandle wraps the whole-book generator with shutdown capability.
type GeneratorHandle struct {
	*prefetch.Generator
}

// Shutdown implements do.Shutdownable.
func (h *GeneratorHandle) Shutdown() error {
	// Abort persists progress so the next run resumes.
	h.Abort()
	return nil
}

// ProvideGenerator provides the whole-book generator.
func ProvideGenerator(i do.Injector) (*GeneratorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	processor := do.MustInvoke[*content.Processor](i)

	generator := prefetch.NewGenerator(processor, storeHandle.Store, sseHandle.Manager, cfg.Prefetch.TaskDelay, log)

	return &GeneratorHandle{Generator: generator}, nil
}

// ConverterHandle wraps the TTS converter with shutdown capability.
type ConverterHandle struct {
	*tts.Converter
}

// Shutdown implements do.Shutdownable.
func (h *ConverterHandle) Shutdown() error {
	h.Cancel()
	return nil
}

// ProvideConverter provides the text-to-speech converter.
func ProvideConverter(i do.Injector) (*ConverterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	client := tts.NewClient(cfg.TTS, log)
	converter, err := tts.NewConverter(client, storeHandle.Store, sseHandle.Manager, cfg.TTS, log)
	if err != nil {
		return nil, err
	}

	log.Info("TTS converter ready", "cache_path", cfg.TTS.CachePath, "format", cfg.TTS.Format)

	return &ConverterHandle{Converter: converter}, nil
}
