// Package ai implements the content-processing providers. A provider
// takes an action prompt plus raw chapter text and returns processed
// text. Providers are resolved fresh per call so configuration edits
// take effect without a restart.
package ai

import (
	"context"
	"strings"

	"github.com/noveldeck/noveldeck-server/internal/config"
	"github.com/noveldeck/noveldeck-server/internal/domain"
	"github.com/noveldeck/noveldeck-server/internal/errors"
	"github.com/noveldeck/noveldeck-server/internal/logger"
	"github.com/noveldeck/noveldeck-server/internal/ratelimit"
)

// ContentPlaceholder marks where chapter text lands in an action prompt.
const ContentPlaceholder = "{{content}}"

// Provider turns an action prompt plus chapter text into processed text.
type Provider interface {
	Name() string
	ProcessContent(ctx context.Context, prompt, content string) (string, error)
}

// Resolver builds providers from current configuration.
type Resolver struct {
	cfg     *config.Config
	limiter *ratelimit.KeyedLimiter
	log     *logger.Logger
}

// NewResolver creates a provider resolver. The limiter is shared
// across calls so rotation between credentials keeps per-key budgets.
func NewResolver(cfg *config.Config, limiter *ratelimit.KeyedLimiter, log *logger.Logger) *Resolver {
	return &Resolver{cfg: cfg, limiter: limiter, log: log}
}

// Resolve returns the provider for the given kind. An empty kind falls
// back to the configured default. Missing credentials surface as
// NOT_CONFIGURED so callers can abort long runs instead of retrying.
func (r *Resolver) Resolve(kind domain.ProviderKind) (Provider, error) {
	ai := r.cfg.AI
	if kind == "" {
		kind = domain.ProviderKind(ai.Provider)
	}

	switch kind {
	case domain.ProviderGemini:
		if len(ai.GeminiAPIKeys) == 0 {
			return nil, errors.NotConfigured("no Gemini API keys configured")
		}
		return newGeminiProvider(ai, r.limiter, r.log), nil
	case domain.ProviderLocal:
		if ai.LocalEndpoint == "" {
			return nil, errors.NotConfigured("local AI endpoint is not configured")
		}
		return newLocalProvider(ai, r.limiter, r.log), nil
	default:
		return nil, errors.Validation("unknown AI provider: " + string(kind))
	}
}

// interpolate substitutes chapter text into a prompt. Prompts without
// the placeholder get the content appended after a blank line.
func interpolate(prompt, content string) string {
	if strings.Contains(prompt, ContentPlaceholder) {
		return strings.ReplaceAll(prompt, ContentPlaceholder, content)
	}
	return prompt + "\n\n" + content
}

// stripPlaceholder removes the placeholder from a prompt for providers
// that carry content out of band.
func stripPlaceholder(prompt string) string {
	return strings.TrimSpace(strings.ReplaceAll(prompt, ContentPlaceholder, ""))
}
