package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
)

const systemPrompt = "You classify cooking recipes. You MUST respond with ONLY a valid JSON object. " +
	"Do not include any explanatory text, markdown formatting, or commentary before or after the JSON."

// Limits on how much of a recipe goes into a prompt.
const (
	maxPromptIngredients = 40
	maxPromptSteps       = 12
	maxStepLength        = 240
)

// Escalator implements service.Escalator on top of a chat model.
type Escalator struct {
	client  Client
	cache   *resultCache
	limiter *rate.Limiter
	retry   common.RetryOptions
}

// NewEscalator creates an escalator for the configured provider.
func NewEscalator(cfg Config) (*Escalator, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return newEscalator(client, cfg), nil
}

func newEscalator(client Client, cfg Config) *Escalator {
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = common.DefaultRetryOptions()
	}
	return &Escalator{
		client:  client,
		cache:   newResultCache(cfg.CacheTTL),
		limiter: newRateLimiter(cfg.RateLimit),
		retry:   retry,
	}
}

// Escalate asks the model to pick tags for recipe from vocabulary. Only
// names from the vocabulary are kept. Every failure wraps common.ErrEscalation.
func (e *Escalator) Escalate(ctx context.Context, recipe *model.Recipe, vocabulary map[model.Category][]string) (model.ClassificationResult, error) {
	key := recipe.ContentHash()
	if result, ok := e.cache.get(key); ok {
		slog.Debug("Escalation cache hit", "slug", recipe.Slug)
		return result, nil
	}

	prompt := buildPrompt(recipe, vocabulary)

	var answer string
	attempts, err := common.WithRetry(ctx, func() error {
		if werr := e.limiter.Wait(ctx); werr != nil {
			return fmt.Errorf("rate limiter canceled: %w", werr)
		}
		var cerr error
		answer, cerr = e.client.Complete(ctx, systemPrompt, prompt)
		return cerr
	}, e.retry)
	if err != nil {
		if errors.Is(err, errQuota) {
			slog.Warn("AI service is out of quota", "provider", e.client.Provider())
		}
		return model.ClassificationResult{}, fmt.Errorf("%w: %s after %d attempts: %w", common.ErrEscalation, e.client.Provider(), attempts, err)
	}

	result, err := parseAnswer(answer, vocabulary)
	if err != nil {
		return model.ClassificationResult{}, fmt.Errorf("%w: %w", common.ErrEscalation, err)
	}

	e.cache.set(key, result)
	slog.Debug("Escalated recipe",
		"slug", recipe.Slug,
		"provider", e.client.Provider(),
		"confidence", result.Confidence,
		"categories", len(result.Matches))
	return result, nil
}

func buildPrompt(recipe *model.Recipe, vocabulary map[model.Category][]string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Recipe: %s\n", recipe.Name)
	if d := strings.TrimSpace(recipe.Description); d != "" {
		fmt.Fprintf(&b, "Description: %s\n", d)
	}

	b.WriteString("\nIngredients:\n")
	for i, ing := range recipe.Ingredients {
		if i == maxPromptIngredients {
			fmt.Fprintf(&b, "- (%d more)\n", len(recipe.Ingredients)-i)
			break
		}
		line := strings.TrimSpace(strings.Join(strings.Fields(ing.Food+" "+ing.Text()), " "))
		fmt.Fprintf(&b, "- %s\n", line)
	}

	b.WriteString("\nInstructions:\n")
	for i, step := range recipe.Instructions {
		if i == maxPromptSteps {
			break
		}
		if len(step) > maxStepLength {
			step = step[:maxStepLength] + "..."
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(step))
	}

	b.WriteString("\nChoose tags for each category ONLY from these lists:\n")
	for _, c := range model.AllCategories {
		names := vocabulary[c]
		if len(names) == 0 {
			continue
		}
		cardinality := "any number"
		if c.SingleValued() {
			cardinality = "at most one"
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", c, cardinality, strings.Join(names, ", "))
	}

	b.WriteString(`
Leave a category out when nothing fits. Respond with JSON in this shape:
{"categories": [{"category": "<name>", "tags": ["<tag>"], "confidence": <0.0-1.0>}]}`)
	return b.String()
}

type answerJSON struct {
	Categories []struct {
		Category   string   `json:"category"`
		Tags       []string `json:"tags"`
		Confidence float64  `json:"confidence"`
	} `json:"categories"`
}

// parseAnswer turns the model's JSON into a result, dropping anything
// outside the vocabulary.
func parseAnswer(content string, vocabulary map[model.Category][]string) (model.ClassificationResult, error) {
	var answer answerJSON
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(content)), &answer); err != nil {
		return model.ClassificationResult{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	result := model.ClassificationResult{Escalated: true}
	seen := make(map[model.Category]bool)

	for _, ac := range answer.Categories {
		category, err := model.ParseCategory(ac.Category)
		if err != nil || seen[category] {
			continue
		}

		match := model.CategoryMatch{Category: category, Confidence: clamp(ac.Confidence)}
		for _, tag := range ac.Tags {
			canonical, ok := lookup(vocabulary[category], tag)
			if !ok || containsString(match.Tags, canonical) {
				continue
			}
			match.Tags = append(match.Tags, canonical)
			if category.SingleValued() {
				break
			}
		}
		if len(match.Tags) == 0 {
			continue
		}

		seen[category] = true
		result.Matches = append(result.Matches, match)
		if match.Confidence > result.Confidence {
			result.Confidence = match.Confidence
		}
	}
	return result, nil
}

func lookup(names []string, tag string) (string, bool) {
	tag = strings.TrimSpace(tag)
	for _, n := range names {
		if strings.EqualFold(n, tag) {
			return n, true
		}
	}
	return "", false
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
