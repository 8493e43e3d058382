// Package mealie is the remote backend: it reads and annotates recipes
// through the recipe manager's REST API.
package mealie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is how many recipe summaries are listed per request.
	DefaultPageSize = 100

	maxErrorBody = 4096
)

// Options configures a Client.
type Options struct {
	// HTTPClient is the base transport; the bearer token is layered on top.
	HTTPClient *http.Client
	BaseURL    string
	Token      string
	// Language is sent with parser requests.
	Language string
	// RateLimit is the request budget per second; zero or less disables it.
	RateLimit float64
	Timeout   time.Duration
	PageSize  int
}

// Client implements service.Source and service.IngredientParser on top of
// the recipe manager's API.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	base       *url.URL
	foods      *nameCache
	units      *nameCache
	organizers map[organizerKind]*nameCache
	language   string
	pageSize   int
}

// APIError is a non-2xx response. It unwraps to the matching sentinel from
// the common package so callers can classify it with errors.Is.
type APIError struct {
	Err        error
	Method     string
	Path       string
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mealie: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// New creates a client. It does not contact the server.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, common.NewMissingConfigError("mealie.url", "base URL is required")
	}
	if strings.TrimSpace(opts.Token) == "" {
		return nil, common.NewMissingConfigError("mealie.token", "API token is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, common.NewConfigError("mealie.url", "invalid base URL %q", opts.BaseURL)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Language == "" {
		opts.Language = "en"
	}

	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"})
	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = opts.Timeout

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	c := &Client{
		http:     hc,
		limiter:  limiter,
		base:     base,
		foods:    newNameCache("/api/foods"),
		units:    newNameCache("/api/units"),
		language: opts.Language,
		pageSize: opts.PageSize,
		organizers: map[organizerKind]*nameCache{
			organizerTags:       newNameCache("/api/organizers/tags"),
			organizerTools:      newNameCache("/api/organizers/tools"),
			organizerCategories: newNameCache("/api/organizers/categories"),
		},
	}
	return c, nil
}

// Name identifies the backend.
func (c *Client) Name() string { return "api" }

// DirectWrites is false: the recipe manager applies every write itself.
func (c *Client) DirectWrites() bool { return false }

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// getJSON issues a GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// sendJSON issues a request with a JSON body and decodes the response into out.
func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	slog.Debug("Mealie request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(method, path, resp.StatusCode, msg)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("mealie: %s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}

// transportError classifies a failure to get any response at all.
func transportError(ctx context.Context, method, path string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("mealie: %s %s: %w", method, path, ctxErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return common.Transient(fmt.Errorf("%w: mealie: %s %s timed out: %w", common.ErrConnection, method, path, err))
	}
	return common.Transient(fmt.Errorf("%w: mealie: %s %s: %w", common.ErrConnection, method, path, err))
}

// statusError maps an HTTP status onto the error taxonomy.
func statusError(method, path string, status int, body []byte) error {
	apiErr := &APIError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Message:    detail(body),
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return common.NewConfigError("mealie.token", "credentials rejected (status %d)", status)
	case status == http.StatusNotFound:
		apiErr.Err = common.ErrNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		apiErr.Err = common.ErrValidation
	case status == http.StatusTooManyRequests:
		apiErr.Err = common.ErrRateLimit
		return common.Transient(apiErr)
	case status >= 500:
		apiErr.Err = common.ErrConnection
		return common.Transient(apiErr)
	default:
		apiErr.Err = errors.New("unexpected status")
	}
	return apiErr
}

// detail extracts FastAPI's {"detail": ...} message, falling back to the raw body.
func detail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(payload.Detail); err == nil {
			return string(b)
		}
	}
	return strings.TrimSpace(string(body))
}
