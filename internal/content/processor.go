// Package content implements the chapter content pipeline: cache
// lookup, raw fetch, AI processing, and caching of the result. All
// entry points funnel through a singleflight group so concurrent
// requests for the same chapter resolve to a single provider call.
package content

import (
	"bytes"
	"context"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/yuin/goldmark"
	"golang.org/x/sync/singleflight"

	"github.com/noveldeck/noveldeck-server/internal/actions"
	"github.com/noveldeck/noveldeck-server/internal/ai"
	"github.com/noveldeck/noveldeck-server/internal/books"
	"github.com/noveldeck/noveldeck-server/internal/domain"
	"github.com/noveldeck/noveldeck-server/internal/errors"
	"github.com/noveldeck/noveldeck-server/internal/logger"
	"github.com/noveldeck/noveldeck-server/internal/sse"
	"github.com/noveldeck/noveldeck-server/internal/store"
)

// ProviderResolver yields an AI provider for an action's backend kind.
type ProviderResolver interface {
	Resolve(kind domain.ProviderKind) (ai.Provider, error)
}

// Processor resolves chapter content for a given processing mode.
type Processor struct {
	store    store.Store
	library  *books.Library
	actions  *actions.Registry
	resolver ProviderResolver
	emitter  store.EventEmitter
	log      *logger.Logger
	markdown goldmark.Markdown
	group    singleflight.Group
}

// NewProcessor creates the content pipeline.
func NewProcessor(
	st store.Store,
	library *books.Library,
	registry *actions.Registry,
	resolver ProviderResolver,
	emitter store.EventEmitter,
	log *logger.Logger,
) *Processor {
	return &Processor{
		store:    st,
		library:  library,
		actions:  registry,
		resolver: resolver,
		emitter:  emitter,
		log:      log,
		markdown: goldmark.New(),
	}
}

// GetContent returns the chapter's content in the requested mode,
// generating and caching it on a miss. Concurrent calls for the same
// (book, chapter, mode) are coalesced into one resolution.
func (p *Processor) GetContent(ctx context.Context, bookID string, chapter int, mode domain.Mode) (string, error) {
	key := domain.ChapterKey{BookID: bookID, Chapter: chapter, Mode: mode}

	result, err, shared := p.group.Do(key.String(), func() (any, error) {
		return p.resolve(ctx, key)
	})
	if shared {
		p.log.Debug("coalesced chapter request", "key", key.String())
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// CacheHit reports whether a chapter is already cached, without
// triggering generation. The prefetch scheduler uses this to decide
// whether the inter-task delay applies.
func (p *Processor) CacheHit(ctx context.Context, bookID string, chapter int, mode domain.Mode) bool {
	if mode == domain.ModeRaw {
		return false
	}
	_, err := p.store.GetChapter(ctx, bookID, chapter, mode)
	return err == nil
}

func (p *Processor) resolve(ctx context.Context, key domain.ChapterKey) (string, error) {
	// Raw mode bypasses the cache and the providers entirely.
	if key.Mode == domain.ModeRaw {
		raw, err := p.library.Chapter(ctx, key.BookID, key.Chapter)
		if err != nil {
			return "", err
		}
		return raw.Text, nil
	}

	if cached, err := p.store.GetChapter(ctx, key.BookID, key.Chapter, key.Mode); err == nil {
		return cached.Content, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	p.emitter.Emit(sse.NewChapterEvent(sse.EventChapterProcessing, key.BookID, key.Chapter, string(key.Mode), ""))

	html, err := p.generate(ctx, key)
	if err != nil {
		p.emitter.Emit(sse.NewChapterEvent(sse.EventChapterFailed, key.BookID, key.Chapter, string(key.Mode), err.Error()))
		return "", err
	}

	p.emitter.Emit(sse.NewChapterEvent(sse.EventChapterReady, key.BookID, key.Chapter, string(key.Mode), ""))
	return html, nil
}

func (p *Processor) generate(ctx context.Context, key domain.ChapterKey) (string, error) {
	action, err := p.actions.Get(string(key.Mode))
	if err != nil {
		return "", err
	}

	raw, err := p.library.Chapter(ctx, key.BookID, key.Chapter)
	if err != nil {
		return "", err
	}

	text := raw.Text
	if raw.HTML {
		// Providers work better on markdown than on raw markup.
		md, err := htmltomarkdown.ConvertString(text)
		if err != nil {
			p.log.Warn("HTML conversion failed, sending markup as-is",
				"book_id", key.BookID, "chapter", key.Chapter, "error", err)
		} else {
			text = md
		}
	}
	if action.Preprocess == domain.PreprocessTTSNormalize {
		text = NormalizeForSpeech(text)
	}

	provider, err := p.resolver.Resolve(action.Provider)
	if err != nil {
		return "", err
	}

	p.log.Info("processing chapter",
		"book_id", key.BookID, "chapter", key.Chapter,
		"mode", key.Mode, "provider", provider.Name())

	result, err := provider.ProcessContent(ctx, action.Prompt, text)
	if err != nil {
		return "", err
	}

	html := p.renderHTML(result)
	if err := p.store.UpsertChapter(ctx, &domain.ProcessedChapter{
		BookID:  key.BookID,
		Chapter: key.Chapter,
		Mode:    key.Mode,
		Content: html,
	}); err != nil {
		// The content is still good; serve it and log the cache failure.
		p.log.Error("caching chapter failed",
			"book_id", key.BookID, "chapter", key.Chapter, "error", err)
	}
	return html, nil
}

// renderHTML converts provider markdown output into the HTML-lite
// fragment the reader renders. Input that is not markdown passes
// through mostly unchanged (paragraphs wrapped).
func (p *Processor) renderHTML(markdown string) string {
	var buf bytes.Buffer
	if err := p.markdown.Convert([]byte(markdown), &buf); err != nil {
		p.log.Warn("markdown rendering failed, serving text as-is", "error", err)
		return markdown
	}
	return buf.String()
}

// FallbackText returns the displayable placeholder for a chapter whose
// processing failed. Callers decide per surface whether to show it or
// propagate the error.
func FallbackText(mode domain.Mode) string {
	switch mode {
	case domain.ModeTranslate:
		return "Translation unavailable."
	case domain.ModeSummary:
		return "Summary unavailable."
	default:
		return "Content unavailable."
	}
}
