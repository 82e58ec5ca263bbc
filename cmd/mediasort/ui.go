package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"mediasort/internal/pipeline"
	"mediasort/internal/relocate"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#4F4FB7")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#959595")).
			Width(10)

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#81A1C1"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#626262")).
			Padding(0, 1)
)

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// reporter shows per-file progress while a run is in flight. On a terminal
// that is a progress bar; dry runs list every planned move instead.
type reporter struct {
	mu     sync.Mutex
	out    io.Writer
	dryRun bool
	bar    *progressbar.ProgressBar
}

func newReporter(out io.Writer, total int, dryRun bool) *reporter {
	r := &reporter{out: out, dryRun: dryRun}
	if !dryRun && total > 0 && isTerminal(out) {
		r.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("  Relocating"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	return r
}

func (r *reporter) result(res relocate.Result, err error) {
	if r.bar != nil {
		_ = r.bar.Add(1)
		return
	}
	if !r.dryRun || err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s -> %s\n", res.Source, pathStyle.Render(res.Destination))
	for _, sc := range res.Sidecars {
		fmt.Fprintf(r.out, "  + %s -> %s\n", sc.Source, pathStyle.Render(sc.Destination))
	}
}

func (r *reporter) finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// watchLine formats a single watch mode outcome.
func watchLine(res relocate.Result, err error) string {
	switch {
	case err != nil:
		return errorStyle.Render("✗ ") + res.Source + ": " + err.Error()
	case res.DryRun:
		return warningStyle.Render("~ ") + res.Source + " -> " + pathStyle.Render(res.Destination)
	case res.Skipped:
		return warningStyle.Render("- ") + res.Source + " (skipped)"
	default:
		return successStyle.Render("✓ ") + res.Source + " -> " + pathStyle.Render(res.Destination)
	}
}

// renderSummary renders the end of run report.
func renderSummary(s pipeline.Summary, runID string, dryRun bool) string {
	var b strings.Builder

	title := "mediasort"
	if dryRun {
		title += " (dry run)"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString(" " + labelStyle.UnsetWidth().Render("run "+shortID(runID)))
	b.WriteString("\n")

	row := func(label string, value int, style lipgloss.Style) {
		v := fmt.Sprintf("%d", value)
		if value > 0 {
			v = style.Render(v)
		}
		b.WriteString(labelStyle.Render(label) + v + "\n")
	}

	row("Found", s.Total, lipgloss.NewStyle())
	if dryRun {
		row("Planned", s.Planned, successStyle)
	} else {
		row("Moved", s.Moved, successStyle)
	}
	row("Sidecars", s.Sidecars, successStyle)
	row("Skipped", s.Skipped, warningStyle)
	row("Failed", s.Failed, errorStyle)
	if s.Cancelled > 0 {
		row("Cancelled", s.Cancelled, warningStyle)
	}
	b.WriteString(labelStyle.Render("Took") + s.Duration.Round(time.Millisecond).String())

	if len(s.Failures) > 0 {
		b.WriteString("\n\n" + errorStyle.Bold(true).Render("Failures"))
		for _, f := range s.Failures {
			b.WriteString(fmt.Sprintf("\n%s%s [%s] %v", errorStyle.Render("✗ "), f.Source, f.Kind, f.Err))
		}
	}

	return boxStyle.Render(b.String())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
