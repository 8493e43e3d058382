package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
)

// Prompter asks the operator yes/no questions on a terminal.
type Prompter struct {
	writer    io.Writer
	reader    *bufio.Reader
	target    string
	backupDir string
}

// NewPrompter creates a prompter. target names the database file shown in
// the confirmation box; backupDir is where it will be copied first, or empty
// when no backup is taken.
func NewPrompter(reader io.Reader, writer io.Writer, target, backupDir string) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{
		reader:    bufio.NewReader(reader),
		writer:    writer,
		target:    target,
		backupDir: backupDir,
	}
}

// ConfirmInactive asks whether Mealie is stopped before the database file is
// written directly. Anything but an explicit yes declines, including EOF.
func (p *Prompter) ConfirmInactive(ctx context.Context) (bool, error) {
	backup := "No --backup-dir is set: nothing is copied before writing."
	if p.backupDir != "" {
		backup = "A backup goes to " + p.backupDir + " before any write."
	}
	content := strings.Join([]string{
		"Direct mode writes straight into the Mealie database:",
		"  " + HeadingStyle.Render(p.target),
		"",
		"Mealie must be stopped while this runs, or its own writes",
		"can collide with ours.",
		backup,
	}, "\n")
	if _, err := fmt.Fprintln(p.writer, RenderBox(WarningIcon+"  Direct database writes", content)); err != nil {
		return false, fmt.Errorf("failed to write confirmation box: %w", err)
	}

	choice, err := p.promptChoice(ctx, "Is Mealie stopped? [y/N]", []string{"y", "yes", "n", "no", ""})
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return choice == "y" || choice == "yes", nil
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if _, err := fmt.Fprintf(p.writer, "%s: ", FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := p.reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || input == "") {
			return "", err
		}

		choice := strings.ToLower(strings.TrimSpace(input))

		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		if _, err := fmt.Fprintln(p.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}

// AssumeInactive is a confirmer for unattended runs where the operator has
// already promised the recipe manager is stopped.
type AssumeInactive bool

// ConfirmInactive returns the preset answer.
func (a AssumeInactive) ConfirmInactive(context.Context) (bool, error) {
	return bool(a), nil
}

// Progress shows a live spinner with per-outcome counts.
type Progress struct {
	bar       *progressbar.ProgressBar
	task      string
	done      int
	failed    int
	skipped   int
	escalated int
	mu        sync.Mutex
}

// NewProgress starts a spinner for task. The candidate count is not known
// up front, so the bar counts without a total.
func NewProgress(writer io.Writer, task string) *Progress {
	if writer == nil {
		writer = os.Stderr
	}
	p := &Progress{task: task}
	p.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription(p.describe()),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// Item records a finished work item. It is safe for concurrent use and is
// meant to be passed as the pipeline's item callback.
func (p *Progress) Item(item *model.WorkItem) {
	p.mu.Lock()
	p.done++
	switch item.State {
	case model.StateFailed:
		p.failed++
	case model.StateSkipped:
		p.skipped++
	}
	if item.Escalated {
		p.escalated++
	}
	desc := p.describe()
	p.mu.Unlock()

	p.bar.Describe(desc)
	if err := p.bar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Done returns how many items have been recorded.
func (p *Progress) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Finish stops the spinner.
func (p *Progress) Finish() {
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}

func (p *Progress) describe() string {
	desc := fmt.Sprintf("[cyan][bold]%s[reset] recipes", p.task)
	if p.skipped > 0 {
		desc += fmt.Sprintf(" [yellow]%d skipped[reset]", p.skipped)
	}
	if p.failed > 0 {
		desc += fmt.Sprintf(" [red]%d failed[reset]", p.failed)
	}
	if p.escalated > 0 {
		desc += fmt.Sprintf(" %s %d", RobotIcon, p.escalated)
	}
	return desc
}
