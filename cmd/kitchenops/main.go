// Package main contains the kitchenops CLI commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/cli"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/common"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/report"
)

var version = "dev"

// app holds the state of one invocation so tests can run commands side by
// side without sharing a global viper.
type app struct {
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	v        *viper.Viper
	root     *cobra.Command
	cfgFile  string
	exitCode int
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	a := &app{in: in, out: out, errOut: errOut, v: viper.New()}

	a.root = &cobra.Command{
		Use:   "kitchenops",
		Short: cli.KitchenIcon + " Mealie recipe catalog maintenance",
		Long: `kitchenops keeps a Mealie recipe catalog tidy: it tags recipes by cuisine,
protein, cheese, course and more from a rule document, parses free-text
ingredient lines, and flags junk imports for review.

Every command is a dry run unless --dry-run=false is given.`,
		PersistentPreRunE: a.initConfig,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	a.root.SetIn(in)
	a.root.SetOut(out)
	a.root.SetErr(errOut)

	flags := a.root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.config/kitchenops/config.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")

	_ = a.v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", flags.Lookup("log-format"))

	a.root.AddCommand(a.modeCmd("classify", "Tag recipes from the rule document",
		`Tag recipes by cuisine, protein, cheese, course, tools and free tags.

Rules come from --rules (YAML or TOML) or the built-in set. Recipes whose
best match falls below --threshold go to the AI service when one is
configured, and are skipped otherwise unless --override is set.`))
	a.root.AddCommand(a.modeCmd("remediate", "Parse free-text ingredient lines",
		`Send unparsed ingredient lines through Mealie's parser. Lines the
natural-language parser is unsure about are retried with the AI parser;
a recipe with any line left unresolved is skipped, never half-written.`))
	a.root.AddCommand(a.modeCmd("clean", "Flag junk imports and broken instructions",
		`Flag listicles, shopping pages and recipes with broken instructions with
a review tag. Nothing is ever deleted.`))
	a.root.AddCommand(a.modeCmd("all", "Run remediate, classify and clean in order", ""))
	a.root.AddCommand(a.rulesCmd())
	a.root.AddCommand(a.versionCmd())

	return a
}

func main() {
	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	os.Exit(a.execute(context.Background(), os.Args[1:]))
}

// execute runs the command line and returns the process exit status.
func (a *app) execute(ctx context.Context, args []string) int {
	a.root.SetArgs(args)
	err := a.root.ExecuteContext(ctx)
	if err == nil {
		return a.exitCode
	}

	var uerr *common.UserError
	if errors.As(err, &uerr) {
		fmt.Fprintln(a.errOut, cli.FormatError(uerr.UserMessage))
		if uerr.Err != nil {
			fmt.Fprintln(a.errOut, cli.FormatInfo("Cause: "+uerr.Err.Error()))
		}
	} else {
		fmt.Fprintln(a.errOut, cli.FormatError(err.Error()))
	}
	if a.exitCode != report.ExitOK {
		return a.exitCode
	}
	if common.IsFatal(err) {
		return report.ExitAborted
	}
	return report.ExitFailures
}

func (a *app) initConfig(_ *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		a.v.AddConfigPath(fmt.Sprintf("%s/.config/kitchenops", home))
		a.v.AddConfigPath(".")
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	// KITCHENOPS_MEALIE_TOKEN, KITCHENOPS_DATABASE_PATH and so on.
	a.v.SetEnvPrefix("KITCHENOPS")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return common.NewConfigError("config", "failed to read config: %v", err)
		}
	}

	if err := a.setupLogging(); err != nil {
		return common.NewConfigError("logging", "%v", err)
	}
	return nil
}

func (a *app) setupLogging() error {
	level, err := common.ParseLevel(a.v.GetString("logging.level"))
	if err != nil {
		return err
	}
	return common.SetupLogger(a.errOut, level, a.v.GetString("logging.format"))
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kitchenops %s\n", version)
			slog.Debug("kitchenops version", "version", version)
		},
	}
}
