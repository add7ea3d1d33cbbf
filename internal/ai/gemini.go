package ai

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noveldeck/noveldeck-server/internal/config"
	"github.com/noveldeck/noveldeck-server/internal/errors"
	"github.com/noveldeck/noveldeck-server/internal/logger"
	"github.com/noveldeck/noveldeck-server/internal/ratelimit"
)

const (
	filePollInterval = time.Second
	filePollTimeout  = 60 * time.Second
)

// geminiProvider processes chapters through the Gemini API. Chapter
// text is uploaded as a transient file, polled until ACTIVE, then
// referenced from the generation request with a JSON response schema.
type geminiProvider struct {
	keys       []string
	baseURL    string
	model      string
	maxRetries int
	client     *http.Client
	limiter    *ratelimit.KeyedLimiter
	log        *logger.Logger
}

func newGeminiProvider(cfg config.AIConfig, limiter *ratelimit.KeyedLimiter, log *logger.Logger) *geminiProvider {
	return &geminiProvider{
		keys:       cfg.GeminiAPIKeys,
		baseURL:    strings.TrimRight(cfg.GeminiBaseURL, "/"),
		model:      cfg.GeminiModel,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		log:        log,
	}
}

func (p *geminiProvider) Name() string { return "gemini" }

// ProcessContent runs one generation, rotating to the next API key when
// the current one hits quota or permission errors. At most
// min(maxRetries, pool size) attempts; the last error wins.
func (p *geminiProvider) ProcessContent(ctx context.Context, prompt, content string) (string, error) {
	attempts := p.maxRetries
	if len(p.keys) < attempts {
		attempts = len(p.keys)
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		key := p.keys[i%len(p.keys)]
		if err := p.limiter.Wait(ctx, key); err != nil {
			return "", errors.Canceled("generation canceled while rate limited")
		}

		result, err := p.generate(ctx, key, prompt, content)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, errors.ErrCanceled) {
			break
		}
		p.log.Warn("gemini attempt failed", "attempt", i+1, "error", err)
	}
	return "", lastErr
}

func (p *geminiProvider) generate(ctx context.Context, key, prompt, content string) (string, error) {
	file, err := p.uploadFile(ctx, key, content)
	if err != nil {
		return "", err
	}
	defer p.deleteFile(key, file.Name)

	if err := p.waitForFile(ctx, key, file); err != nil {
		return "", err
	}

	reqBody := map[string]any{
		"contents": []any{
			map[string]any{
				"parts": []any{
					map[string]any{"text": stripPlaceholder(prompt)},
					map[string]any{"file_data": map[string]any{
						"file_uri":  file.URI,
						"mime_type": "text/plain",
					}},
				},
			},
		},
		"generationConfig": map[string]any{
			"response_mime_type": "application/json",
			"response_schema": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"content": map[string]any{"type": "STRING"},
				},
				"required": []string{"content"},
			},
		},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "encoding generation request")
	}

	genURL := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.baseURL, p.model, url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, genURL, bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "building generation request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.Canceled("generation canceled")
		}
		return "", errors.Unavailable("gemini request failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Unavailable("reading gemini response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, body)
	}

	var genResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", errors.BadResponse("gemini returned invalid JSON").WithCause(err)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", errors.BadResponse("gemini returned no candidates")
	}

	var payload struct {
		Content string `json:"content"`
	}
	text := genResp.Candidates[0].Content.Parts[0].Text
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return "", errors.BadResponse("gemini candidate is not schema JSON").WithCause(err)
	}
	if payload.Content == "" {
		return "", errors.BadResponse("gemini candidate is missing content field")
	}
	return payload.Content, nil
}

type geminiFile struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	State string `json:"state"`
}

// uploadFile sends chapter text as a transient blob the generation
// request can reference.
func (p *geminiProvider) uploadFile(ctx context.Context, key, content string) (*geminiFile, error) {
	uploadURL := fmt.Sprintf("%s/upload/v1beta/files?key=%s", p.baseURL, url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, strings.NewReader(content))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "building upload request")
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Goog-Upload-Protocol", "raw")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Canceled("upload canceled")
		}
		return nil, errors.Unavailable("gemini upload failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Unavailable("reading upload response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}

	var uploadResp struct {
		File geminiFile `json:"file"`
	}
	if err := json.Unmarshal(body, &uploadResp); err != nil {
		return nil, errors.BadResponse("upload response is not JSON").WithCause(err)
	}
	if uploadResp.File.URI == "" {
		return nil, errors.BadResponse("upload response is missing file uri")
	}
	return &uploadResp.File, nil
}

// waitForFile polls the uploaded blob until it is ACTIVE.
func (p *geminiProvider) waitForFile(ctx context.Context, key string, file *geminiFile) error {
	if file.State == "ACTIVE" {
		return nil
	}

	deadline := time.Now().Add(filePollTimeout)
	ticker := time.NewTicker(filePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errors.Canceled("file poll canceled")
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return errors.Unavailable("uploaded file never became active")
		}

		statusURL := fmt.Sprintf("%s/v1beta/%s?key=%s", p.baseURL, file.Name, url.QueryEscape(key))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternal, "building file status request")
		}
		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return errors.Canceled("file poll canceled")
			}
			return errors.Unavailable("file status request failed").WithCause(err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return errors.Unavailable("reading file status").WithCause(err)
		}
		if resp.StatusCode != http.StatusOK {
			return statusError(resp.StatusCode, body)
		}

		var status geminiFile
		if err := json.Unmarshal(body, &status); err != nil {
			return errors.BadResponse("file status is not JSON").WithCause(err)
		}
		switch status.State {
		case "ACTIVE":
			return nil
		case "FAILED":
			return errors.BadResponse("uploaded file failed processing")
		}
	}
}

// deleteFile is best effort cleanup of the transient blob.
func (p *geminiProvider) deleteFile(key, name string) {
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	deleteURL := fmt.Sprintf("%s/v1beta/%s?key=%s", p.baseURL, name, url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Debug("file cleanup failed", "file", name, "error", err)
		return
	}
	resp.Body.Close()
}

// statusError classifies an HTTP failure so callers can distinguish
// credential problems (rotate keys, abort runs) from transient ones.
func statusError(code int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	switch {
	case code == http.StatusUnauthorized:
		return errors.InvalidCredentials("API key rejected")
	case code == http.StatusForbidden:
		return errors.Forbidden("API key lacks permission")
	case code == http.StatusTooManyRequests:
		return errors.RateLimited("provider quota exhausted")
	case code == http.StatusNotFound:
		return errors.NotFound("provider resource not found")
	case code >= 500:
		return errors.Unavailablef("provider returned %d: %s", code, detail)
	default:
		return errors.BadResponse(fmt.Sprintf("provider returned %d: %s", code, detail))
	}
}
