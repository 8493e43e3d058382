package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/spf13/viper"
)

// Mode selects which tasks a run performs.
type Mode string

// Mode constants.
const (
	ModeClassify  Mode = "classify"
	ModeRemediate Mode = "remediate"
	ModeClean     Mode = "clean"
	ModeAll       Mode = "all"
)

// Backend selects the data-access variant.
type Backend string

// Backend constants.
const (
	BackendAPI         Backend = "api"
	BackendDirect      Backend = "direct"
	BackendAccelerated Backend = "accelerated"
)

// Defaults applied when nothing else is configured.
const (
	DefaultWorkers        = 2
	DefaultThreshold      = 0.4
	DefaultParseThreshold = 0.85
	DefaultMealieURL      = "http://localhost:9000"
	DefaultRateLimit      = 10.0
	DefaultHTTPTimeout    = 30 * time.Second
)

// LLMConfig configures the optional AI escalation service.
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	RateLimit   float64
	Temperature float64
	MaxTokens   int
}

// Enabled reports whether an escalation provider is configured.
func (c LLMConfig) Enabled() bool {
	return c.Provider != "" && c.Provider != "none"
}

// ExecutionContext is the immutable set of toggles for one run. After
// resumes candidate discovery after that slug.
// It is built once at startup and passed by value.
type ExecutionContext struct {
	Mode            Mode
	Backend         Backend
	MealieURL       string
	MealieToken     string
	DBPath          string
	BackupDir       string
	RulesPath       string
	MetricsFile     string
	After           string
	LLM             LLMConfig
	Retry           common.RetryOptions
	Workers         int
	QueueSize       int
	Threshold       float64
	ParseThreshold  float64
	RateLimit       float64
	HTTPTimeout     time.Duration
	DryRun          bool
	Override        bool
	ConfirmInactive bool
	Progress        bool
}

// Default returns an execution context with safe defaults: dry-run on,
// remote API backend, small worker pool.
func Default() ExecutionContext {
	return ExecutionContext{
		Mode:           ModeClassify,
		Backend:        BackendAPI,
		MealieURL:      DefaultMealieURL,
		Retry:          common.DefaultRetryOptions(),
		Workers:        DefaultWorkers,
		Threshold:      DefaultThreshold,
		ParseThreshold: DefaultParseThreshold,
		RateLimit:      DefaultRateLimit,
		HTTPTimeout:    DefaultHTTPTimeout,
		DryRun:         true,
	}
}

// Load builds an ExecutionContext from viper.
// Precedence: viper (flags, config file, KITCHENOPS_ env vars), then the
// plain MEALIE_URL, MEALIE_API_TOKEN and DRY_RUN variables, then defaults.
func Load(v *viper.Viper, mode Mode) (ExecutionContext, error) {
	ec := Default()
	ec.Mode = mode

	if s := v.GetString("backend"); s != "" {
		ec.Backend = Backend(strings.ToLower(s))
	}
	// A bound flag's default does not count as set, so MEALIE_URL still wins
	// over an untouched --mealie-url.
	if v.IsSet("mealie.url") {
		ec.MealieURL = v.GetString("mealie.url")
	} else if s := os.Getenv("MEALIE_URL"); s != "" {
		ec.MealieURL = s
	}
	ec.MealieURL = strings.TrimRight(ec.MealieURL, "/")

	if s := v.GetString("mealie.token"); s != "" {
		ec.MealieToken = s
	} else {
		ec.MealieToken = os.Getenv("MEALIE_API_TOKEN")
	}

	if err := loadPaths(v, &ec); err != nil {
		return ExecutionContext{}, err
	}
	ec.After = v.GetString("after")

	if v.IsSet("dry_run") {
		ec.DryRun = v.GetBool("dry_run")
	} else if s := os.Getenv("DRY_RUN"); s != "" {
		ec.DryRun = strings.EqualFold(s, "true")
	}
	if v.IsSet("workers") {
		ec.Workers = v.GetInt("workers")
	}
	if v.IsSet("queue_size") {
		ec.QueueSize = v.GetInt("queue_size")
	}
	if v.IsSet("threshold") {
		ec.Threshold = v.GetFloat64("threshold")
	}
	if v.IsSet("parse_threshold") {
		ec.ParseThreshold = v.GetFloat64("parse_threshold")
	}
	if v.IsSet("mealie.rate_limit") {
		ec.RateLimit = v.GetFloat64("mealie.rate_limit")
	}
	if d := v.GetDuration("mealie.timeout"); d > 0 {
		ec.HTTPTimeout = d
	}
	if v.IsSet("retry.max_attempts") {
		ec.Retry.MaxAttempts = v.GetInt("retry.max_attempts")
	}
	if d := v.GetDuration("retry.initial_delay"); d > 0 {
		ec.Retry.InitialDelay = d
	}
	if d := v.GetDuration("retry.max_delay"); d > 0 {
		ec.Retry.MaxDelay = d
	}

	ec.Override = v.GetBool("override")
	ec.ConfirmInactive = v.GetBool("confirm_inactive")
	ec.Progress = v.GetBool("progress")

	ec.LLM = LLMConfig{
		Provider:    strings.ToLower(v.GetString("llm.provider")),
		Model:       v.GetString("llm.model"),
		APIKey:      v.GetString("llm.api_key"),
		RateLimit:   v.GetFloat64("llm.rate_limit"),
		Temperature: v.GetFloat64("llm.temperature"),
		MaxTokens:   v.GetInt("llm.max_tokens"),
	}
	if ec.LLM.APIKey == "" {
		switch ec.LLM.Provider {
		case "openai":
			ec.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			ec.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}

	if ec.QueueSize <= 0 {
		ec.QueueSize = 2 * ec.Workers
	}

	if err := ec.Validate(); err != nil {
		return ExecutionContext{}, err
	}
	return ec, nil
}

// Validate checks that the context is usable before any record is touched.
func (ec ExecutionContext) Validate() error {
	switch ec.Mode {
	case ModeClassify, ModeRemediate, ModeClean, ModeAll:
	default:
		return common.NewConfigError("mode", "unknown mode %q", ec.Mode)
	}

	switch ec.Backend {
	case BackendAPI:
		if err := ec.requireAPI(); err != nil {
			return err
		}
	case BackendDirect:
		if ec.DBPath == "" {
			return common.NewMissingConfigError("database.path", "direct backend requires a database path")
		}
		// The ingredient parser only exists behind the API.
		if ec.Mode == ModeRemediate || ec.Mode == ModeAll {
			if err := ec.requireAPI(); err != nil {
				return err
			}
		}
	case BackendAccelerated:
		if ec.DBPath == "" {
			return common.NewMissingConfigError("database.path", "accelerated backend requires a database path")
		}
		if err := ec.requireAPI(); err != nil {
			return err
		}
	default:
		return common.NewConfigError("backend", "unknown backend %q (want api, direct or accelerated)", ec.Backend)
	}

	if ec.Workers < 1 {
		return common.NewConfigError("workers", "must be at least 1, got %d", ec.Workers)
	}
	if ec.QueueSize < 1 {
		return common.NewConfigError("queue_size", "must be at least 1, got %d", ec.QueueSize)
	}
	if ec.Threshold < 0 || ec.Threshold > 1 {
		return common.NewConfigError("threshold", "must be between 0 and 1, got %v", ec.Threshold)
	}
	if ec.ParseThreshold < 0 || ec.ParseThreshold > 1 {
		return common.NewConfigError("parse_threshold", "must be between 0 and 1, got %v", ec.ParseThreshold)
	}
	if ec.Retry.MaxAttempts < 1 {
		return common.NewConfigError("retry.max_attempts", "must be at least 1, got %d", ec.Retry.MaxAttempts)
	}

	switch ec.LLM.Provider {
	case "", "none":
	case "openai", "anthropic":
		if ec.LLM.APIKey == "" {
			return common.NewMissingConfigError("llm.api_key", ec.LLM.Provider+" provider requires an API key")
		}
	default:
		return common.NewConfigError("llm.provider", "unsupported provider %q", ec.LLM.Provider)
	}

	return nil
}

func (ec ExecutionContext) requireAPI() error {
	if ec.MealieURL == "" {
		return common.NewMissingConfigError("mealie.url", "remote API backend requires a URL")
	}
	if ec.MealieToken == "" {
		return common.NewMissingConfigError("mealie.token", "MEALIE_API_TOKEN is not set")
	}
	return nil
}

// DirectWrites reports whether this run may write straight to the store.
func (ec ExecutionContext) DirectWrites() bool {
	return ec.Backend == BackendDirect && !ec.DryRun
}

// String summarizes the context for the run banner.
func (ec ExecutionContext) String() string {
	return fmt.Sprintf("mode=%s backend=%s workers=%d dry_run=%t", ec.Mode, ec.Backend, ec.Workers, ec.DryRun)
}
