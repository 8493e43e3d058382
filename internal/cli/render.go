package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/config"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
	"github.com/D0rk4ce/mealie-kitchen-ops/internal/report"
)

const (
	maxShownErrors = 10
	maxShownTags   = 5
)

// RenderReport writes the end-of-run summary for job.
func RenderReport(w io.Writer, job *report.JobReport, ec config.ExecutionContext) error {
	var sections []string

	sections = append(sections, renderCounts(job, ec))
	if tags := renderTags(job); tags != "" {
		sections = append(sections, tags)
	}
	if errs := renderErrors(job); errs != "" {
		sections = append(sections, errs)
	}

	box := RenderBox(reportTitle(job, ec), strings.Join(sections, "\n\n"))
	if _, err := fmt.Fprintln(w, box); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	var footer string
	switch {
	case job.Aborted():
		footer = FormatError(fmt.Sprintf("Run aborted: %v", job.AbortErr()))
	case job.Interrupted():
		footer = FormatWarning("Run interrupted. Finished recipes are saved; run again to continue.")
	case ec.DryRun && job.WouldApply() > 0:
		footer = FormatInfo("Dry run: nothing was written. Re-run with --dry-run=false to apply.")
	case job.Count(model.StateFailed) > 0:
		footer = FormatWarning(fmt.Sprintf("%d recipes failed", job.Count(model.StateFailed)))
	default:
		footer = FormatSuccess("All done!")
	}
	if _, err := fmt.Fprintln(w, footer); err != nil {
		return fmt.Errorf("failed to write report footer: %w", err)
	}
	return nil
}

func reportTitle(job *report.JobReport, ec config.ExecutionContext) string {
	title := fmt.Sprintf("%s %s (%s)", ChartIcon, job.Task, ec.Backend)
	if ec.DryRun {
		title += " [dry run]"
	}
	return title
}

func renderCounts(job *report.JobReport, ec config.ExecutionContext) string {
	rows := [][2]string{
		{"Processed", fmt.Sprintf("%d", job.Processed())},
		{"Succeeded", StateStyle(model.StateSucceeded).Render(fmt.Sprintf("%d", job.Count(model.StateSucceeded)))},
		{"Skipped", StateStyle(model.StateSkipped).Render(fmt.Sprintf("%d", job.Count(model.StateSkipped)))},
		{"Failed", StateStyle(model.StateFailed).Render(fmt.Sprintf("%d", job.Count(model.StateFailed)))},
	}
	if ec.DryRun {
		rows = append(rows, [2]string{"Would change", fmt.Sprintf("%d", job.WouldApply())})
	}
	if n := job.Escalations(); n > 0 {
		rows = append(rows, [2]string{"Escalated", fmt.Sprintf("%s %d", RobotIcon, n)})
	}
	if n := job.Retries(); n > 0 {
		rows = append(rows, [2]string{"Retries", fmt.Sprintf("%d", n)})
	}
	rows = append(rows, [2]string{"Elapsed", report.FormatElapsed(job.Elapsed())})

	return renderTable(rows)
}

func renderTable(rows [][2]string) string {
	labels := make([]string, len(rows))
	values := make([]string, len(rows))
	for i, r := range rows {
		labels[i] = LabelStyle.Render(r[0])
		values[i] = CellStyle.Render(r[1])
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.JoinVertical(lipgloss.Left, labels...),
		lipgloss.JoinVertical(lipgloss.Left, values...),
	)
}

// renderTags lists what was added per category. Cuisine gets a share table.
func renderTags(job *report.JobReport) string {
	var parts []string

	if shares := job.Distribution(model.CategoryCuisine); len(shares) > 0 {
		rows := make([][2]string, 0, len(shares))
		for _, s := range shares {
			rows = append(rows, [2]string{s.Tag, fmt.Sprintf("%4d  %5.1f%%", s.Count, s.Percent)})
		}
		parts = append(parts, HeadingStyle.Render("Cuisine market share")+"\n"+renderTable(rows))
	}

	var lines []string
	for _, c := range model.AllCategories {
		if c == model.CategoryCuisine {
			continue
		}
		shares := job.Distribution(c)
		if len(shares) == 0 {
			continue
		}
		names := make([]string, 0, maxShownTags+1)
		for i, s := range shares {
			if i == maxShownTags {
				names = append(names, MutedStyle.Render(fmt.Sprintf("+%d more", len(shares)-i)))
				break
			}
			names = append(names, fmt.Sprintf("%s (%d)", s.Tag, s.Count))
		}
		lines = append(lines, fmt.Sprintf("%s: %s", LabelStyle.Render(string(c)), strings.Join(names, ", ")))
	}
	if len(lines) > 0 {
		parts = append(parts, HeadingStyle.Render("Added")+"\n"+strings.Join(lines, "\n"))
	}

	return strings.Join(parts, "\n\n")
}

func renderErrors(job *report.JobReport) string {
	errs := job.Errors()
	if len(errs) == 0 {
		return ""
	}

	lines := []string{HeadingStyle.Render("Problems")}
	for i, e := range errs {
		if i == maxShownErrors {
			lines = append(lines, MutedStyle.Render(fmt.Sprintf("... and %d more (see log)", len(errs)-i)))
			break
		}
		lines = append(lines, fmt.Sprintf("%s %s: %v", StateIcon(e.State), e.Slug, e.Err))
	}
	return strings.Join(lines, "\n")
}
