package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
)

// Client sends one prompt to a chat model and returns its text answer.
type Client interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Provider() string
}

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Err        error
	Provider   string
	Body       string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// errQuota is returned when the account has no credit left. Retrying
// cannot help, unlike an ordinary 429.
var errQuota = errors.New("quota exhausted")

// statusError classifies a provider failure for the retry loop.
func statusError(provider string, status int, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > 512 {
		text = text[:512]
	}
	apiErr := &APIError{Provider: provider, StatusCode: status, Body: text}

	switch {
	case status == http.StatusTooManyRequests && isQuotaError(text):
		apiErr.Err = common.Permanent(errQuota)
	case status == http.StatusTooManyRequests:
		apiErr.Err = common.Transient(common.ErrRateLimit)
	case status >= http.StatusInternalServerError:
		apiErr.Err = common.Transient(common.ErrConnection)
	default:
		apiErr.Err = common.Permanent(common.ErrValidation)
	}
	return apiErr
}

func isQuotaError(body string) bool {
	body = strings.ToLower(body)
	return strings.Contains(body, "insufficient_quota") || strings.Contains(body, "credit balance")
}

// transportError marks network failures as retryable unless the caller
// gave up.
func transportError(ctx context.Context, provider string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return common.Transient(fmt.Errorf("%s request failed: %w: %w", provider, common.ErrConnection, err))
}

// cleanMarkdownWrapper strips a ```json fence some models put around JSON.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// postJSON sends payload to url and decodes a 200 answer into out.
func postJSON(ctx context.Context, hc *http.Client, provider, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return transportError(ctx, provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(provider, resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", provider, err)
	}
	return nil
}
