package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/cli"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/pattern"
)

func (a *app) rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rule"},
		Short:   "Inspect classification rule documents",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check [file]",
		Short: "Compile a rule document and summarize it",
		Long: `Compile a YAML or TOML rule document and list its categories.
Without a file the configured rules.path is checked, or the built-in rules.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.v.GetString("rules.path")
			if len(args) == 1 {
				path = args[0]
			}
			rules, err := loadRules(path)
			if err != nil {
				return err
			}
			return printRules(cmd, rules)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Print the built-in rule document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write(pattern.DefaultDocument())
			return err
		},
	})

	return cmd
}

func printRules(cmd *cobra.Command, rules *pattern.RuleSet) error {
	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CATEGORY\tRULES\tTAGS")
	_, _ = fmt.Fprintln(w, "────────\t─────\t────")

	vocabulary := rules.Vocabulary()
	for _, s := range rules.Sections {
		tags := vocabulary[s.Category]
		shown := tags
		if len(shown) > 6 {
			shown = append(append([]string(nil), tags[:6]...), fmt.Sprintf("+%d more", len(tags)-6))
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", s.Category, len(s.Rules), strings.Join(shown, ", "))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write rules table: %w", err)
	}

	_, err := fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s: %d rules compiled", rules.Source, rules.Len())))
	return err
}
