package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/backend"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/classification"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/cli"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/config"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/engine"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/llm"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/pattern"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/report"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/safety"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/service"
)

// runFlags maps each run flag to its viper key.
var runFlags = map[string]string{
	"backend":          "backend",
	"mealie-url":       "mealie.url",
	"rate-limit":       "mealie.rate_limit",
	"timeout":          "mealie.timeout",
	"db":               "database.path",
	"backup-dir":       "database.backup_dir",
	"rules":            "rules.path",
	"metrics-file":     "metrics.file",
	"dry-run":          "dry_run",
	"workers":          "workers",
	"queue-size":       "queue_size",
	"threshold":        "threshold",
	"parse-threshold":  "parse_threshold",
	"override":         "override",
	"confirm-inactive": "confirm_inactive",
	"progress":         "progress",
	"retry-attempts":   "retry.max_attempts",
	"llm-provider":     "llm.provider",
	"llm-model":        "llm.model",
	"llm-rate-limit":   "llm.rate_limit",
	"after":            "after",
}

func (a *app) modeCmd(mode config.Mode, short, long string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(mode),
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Commands share viper keys, so bind only the flags of the one
			// that is running.
			for name, key := range runFlags {
				if err := a.v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
					return fmt.Errorf("failed to bind --%s: %w", name, err)
				}
			}
			return a.run(cmd, mode)
		},
	}
	addRunFlags(cmd.Flags())
	return cmd
}

func addRunFlags(f *pflag.FlagSet) {
	f.String("backend", string(config.BackendAPI), "data access: api, direct or accelerated")
	f.String("mealie-url", config.DefaultMealieURL, "Mealie base URL (token from MEALIE_API_TOKEN)")
	f.Float64("rate-limit", config.DefaultRateLimit, "Mealie API requests per second")
	f.Duration("timeout", config.DefaultHTTPTimeout, "Mealie API request timeout")
	f.String("db", "", "path to Mealie's SQLite database (direct and accelerated backends)")
	f.String("backup-dir", "", "directory for a database backup taken before direct writes")
	f.String("rules", "", "rule document (YAML or TOML); built-in rules when empty")
	f.String("metrics-file", "", "write Prometheus metrics to this textfile at the end of the run")
	f.Bool("dry-run", true, "report what would change without writing")
	f.Int("workers", config.DefaultWorkers, "number of concurrent workers")
	f.Int("queue-size", 0, "work queue capacity (default 2x workers)")
	f.Float64("threshold", config.DefaultThreshold, "minimum classification confidence")
	f.Float64("parse-threshold", config.DefaultParseThreshold, "minimum ingredient parse confidence")
	f.Bool("override", false, "apply results below the confidence threshold")
	f.Bool("confirm-inactive", false, "skip the prompt and assert Mealie is stopped (direct writes)")
	f.Bool("progress", true, "show a progress spinner")
	f.Int("retry-attempts", 3, "attempts per operation before a recipe fails")
	f.String("llm-provider", "", "AI escalation provider: openai, anthropic or none")
	f.String("llm-model", "", "AI model name (provider default when empty)")
	f.Float64("llm-rate-limit", 0, "AI requests per minute")
	f.String("after", "", "resume: only process recipes whose slug sorts after this one")
}

// run executes one mode end to end and records the exit status on a.
func (a *app) run(cmd *cobra.Command, mode config.Mode) error {
	ec, err := config.Load(a.v, mode)
	if err != nil {
		return explain(err, ec, mode)
	}
	slog.Debug("Execution context", "context", ec.String())

	// Rules and detectors are compiled before anything is opened so a bad
	// document never touches a record.
	var rules *pattern.RuleSet
	if mode == config.ModeClassify || mode == config.ModeAll {
		if rules, err = loadRules(ec.RulesPath); err != nil {
			return err
		}
	}
	detector, err := classification.NewPatternDetector(classification.DefaultPatterns())
	if err != nil {
		return fmt.Errorf("failed to compile junk detector: %w", err)
	}

	var escalator service.Escalator
	if ec.LLM.Enabled() && rules != nil {
		esc, eerr := llm.NewEscalator(llm.Config{
			Provider:    ec.LLM.Provider,
			APIKey:      ec.LLM.APIKey,
			Model:       ec.LLM.Model,
			Retry:       ec.Retry,
			RateLimit:   ec.LLM.RateLimit,
			Temperature: ec.LLM.Temperature,
			MaxTokens:   ec.LLM.MaxTokens,
		})
		if eerr != nil {
			return eerr
		}
		escalator = esc
	}

	interrupts := cli.NewInterruptHandler(a.errOut)
	ctx := interrupts.HandleInterrupts(cmd.Context(), ec.Progress)
	defer interrupts.Stop()

	handles, err := backend.Open(ctx, ec, backend.Options{})
	if err != nil {
		return explain(fmt.Errorf("failed to open %s backend: %w", ec.Backend, err), ec, mode)
	}
	defer func() {
		if cerr := handles.Close(); cerr != nil {
			slog.Warn("Failed to close backend", "error", cerr)
		}
	}()

	governor := safety.New(safety.Config{
		Confirmer:    a.confirmer(ec),
		Prober:       handles.Prober,
		DryRun:       ec.DryRun,
		DirectWrites: handles.Source.DirectWrites(),
	})
	if err := governor.Check(ctx); err == nil {
		if err := governor.Proceed(); err != nil {
			return explain(err, ec, mode)
		}
		path, err := handles.Backup(ctx, ec.BackupDir)
		if err != nil {
			return common.NewUserError("Could not back up the database, so nothing was written", err)
		}
		if path != "" {
			fmt.Fprintln(a.errOut, cli.FormatSuccess("Backed up database to "+path))
		} else if handles.Source.DirectWrites() {
			slog.Warn("Writing to the database without a backup; set --backup-dir to take one")
		}
	}

	opts := engine.Options{
		Source:   handles.Source,
		Governor: governor,
		Context:  ec,
	}
	if ec.Progress {
		progress := cli.NewProgress(a.errOut, string(mode))
		defer progress.Finish()
		opts.OnItem = progress.Item
	}
	pipeline, err := engine.NewPipeline(opts)
	if err != nil {
		return err
	}

	tasks := buildTasks(mode, ec, rules, escalator, detector, handles.Parser)
	job, runErr := pipeline.RunAll(ctx, string(mode), tasks...)

	if err := cli.RenderReport(a.out, job, ec); err != nil {
		slog.Warn("Failed to render report", "error", err)
	}
	if ec.MetricsFile != "" {
		if err := pipeline.Reporter().WriteTextfile(ec.MetricsFile); err != nil {
			slog.Warn("Failed to write metrics", "path", ec.MetricsFile, "error", err)
		}
	}

	a.exitCode = job.ExitCode()
	if runErr != nil && !job.Aborted() {
		if a.exitCode == report.ExitOK {
			a.exitCode = report.ExitFailures
		}
		return explain(runErr, ec, mode)
	}
	return nil
}

// explain attaches an actionable message to errors the user can fix.
func explain(err error, ec config.ExecutionContext, mode config.Mode) error {
	switch {
	case errors.Is(err, common.ErrMissingConfig):
		return common.NewUserError(fmt.Sprintf("A required setting is missing; see kitchenops %s --help", mode), err)
	case errors.Is(err, common.ErrLockConflict):
		return common.NewUserError("Mealie is still using "+ec.DBPath+"; stop it and run again", err)
	case errors.Is(err, common.ErrSchemaMismatch):
		return common.NewUserError("This database layout is not one kitchenops knows; try --backend api", err)
	case errors.Is(err, common.ErrConnection) && ec.Backend == config.BackendAPI:
		return common.NewUserError("Could not reach Mealie at "+ec.MealieURL, err)
	case errors.Is(err, common.ErrConnection):
		return common.NewUserError("Could not open the database at "+ec.DBPath, err)
	}
	return err
}

func (a *app) confirmer(ec config.ExecutionContext) service.Confirmer {
	if ec.ConfirmInactive {
		return cli.AssumeInactive(true)
	}
	return cli.NewPrompter(a.in, a.errOut, ec.DBPath, ec.BackupDir)
}

func loadRules(path string) (*pattern.RuleSet, error) {
	if path == "" {
		return pattern.Default()
	}
	return pattern.LoadFile(path)
}

// buildTasks returns the tasks of mode in run order. All runs parsing first
// so classification sees structured ingredients.
func buildTasks(mode config.Mode, ec config.ExecutionContext, rules *pattern.RuleSet,
	escalator service.Escalator, detector *classification.PatternDetector, parser service.IngredientParser,
) []engine.Task {
	classify := func() engine.Task {
		return engine.NewClassifyTask(rules, escalator, ec.Threshold)
	}
	remediate := func() engine.Task {
		return engine.NewRemediateTask(parser, ec.ParseThreshold)
	}
	clean := func() engine.Task {
		return engine.NewCleanTask(detector, ec.Threshold)
	}

	switch mode {
	case config.ModeClassify:
		return []engine.Task{classify()}
	case config.ModeRemediate:
		return []engine.Task{remediate()}
	case config.ModeClean:
		return []engine.Task{clean()}
	default:
		return []engine.Task{remediate(), classify(), clean()}
	}
}
