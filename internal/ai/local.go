package ai

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"io"
	"net/http"
	"strings"

	"github.com/avast/retry-go/v4"

	"github.com/noveldeck/noveldeck-server/internal/config"
	"github.com/noveldeck/noveldeck-server/internal/errors"
	"github.com/noveldeck/noveldeck-server/internal/logger"
	"github.com/noveldeck/noveldeck-server/internal/ratelimit"
)

// localProvider talks to a local OpenAI-chat-completions-shaped server
// (LM Studio, Ollama with the compat endpoint, llama.cpp server).
type localProvider struct {
	endpoint   string
	model      string
	maxRetries int
	client     *http.Client
	limiter    *ratelimit.KeyedLimiter
	log        *logger.Logger
}

func newLocalProvider(cfg config.AIConfig, limiter *ratelimit.KeyedLimiter, log *logger.Logger) *localProvider {
	return &localProvider{
		endpoint:   strings.TrimRight(cfg.LocalEndpoint, "/"),
		model:      cfg.LocalModel,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		log:        log,
	}
}

func (p *localProvider) Name() string { return "local" }

// ProcessContent sends the interpolated prompt as a single user message
// and retries transient failures with a bounded backoff.
func (p *localProvider) ProcessContent(ctx context.Context, prompt, content string) (string, error) {
	attempts := uint(p.maxRetries)
	if attempts < 1 {
		attempts = 1
	}

	return retry.DoWithData(
		func() (string, error) {
			if err := p.limiter.Wait(ctx, p.endpoint); err != nil {
				return "", errors.Canceled("generation canceled while rate limited")
			}
			return p.complete(ctx, interpolate(prompt, content))
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(errors.Retryable),
	)
}

func (p *localProvider) complete(ctx context.Context, message string) (string, error) {
	reqBody := map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "user", "content": message},
		},
		"stream": false,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "encoding chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.endpoint+"/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "building chat request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.Canceled("generation canceled")
		}
		return "", errors.Unavailable("local AI request failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Unavailable("reading local AI response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, body)
	}

	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", errors.BadResponse("local AI returned invalid JSON").WithCause(err)
	}
	if len(chatResp.Choices) == 0 {
		return "", errors.BadResponse("local AI returned no choices")
	}

	reply := stripCodeFences(chatResp.Choices[0].Message.Content)
	if reply == "" {
		return "", errors.BadResponse("local AI returned an empty reply")
	}
	return reply, nil
}

// stripCodeFences unwraps a reply the model wrapped in a markdown code
// block, with or without a language tag.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	end := strings.LastIndex(s, "```")
	if end <= 0 {
		return s
	}
	inner := s[3:end]
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		first := strings.TrimSpace(inner[:nl])
		if first != "" && !strings.ContainsAny(first, " \t") {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}
