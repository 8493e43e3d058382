package llm

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
)

// Config holds configuration for the escalation service.
type Config struct {
	// HTTPClient replaces the default client, mostly for tests.
	HTTPClient *http.Client
	Provider   string
	APIKey     string
	Model      string
	// BaseURL overrides the provider endpoint.
	BaseURL string
	Retry   common.RetryOptions
	// RateLimit is in requests per minute.
	RateLimit   float64
	Temperature float64
	CacheTTL    time.Duration
	MaxTokens   int
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func (c Config) temperature() float64 {
	if c.Temperature == 0 {
		return 0.2
	}
	return c.Temperature
}

func (c Config) maxTokens() int {
	if c.MaxTokens == 0 {
		return 400
	}
	return c.MaxTokens
}

// NewClient creates a provider client from cfg.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
