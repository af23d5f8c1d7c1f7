package main

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gnana997/movets/pkg/mover"
	"github.com/gnana997/movets/pkg/workspace"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	movedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	createdStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// rel shortens path for display.
func rel(root, path string) string {
	if r, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(r, "..") {
		return r
	}
	return path
}

// formatSummary renders a move result.
func formatSummary(root, title string, result *mover.Result) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(title) + "\n\n")
	if result == nil {
		return b.String()
	}

	if len(result.Moved) > 0 {
		b.WriteString(movedStyle.Render("Moved:") + "\n")
		for _, m := range result.Moved {
			fmt.Fprintf(&b, "  %s → %s\n", rel(root, m.SourcePath), rel(root, m.TargetPath))
		}
	}
	renderList := func(title string, style lipgloss.Style, list []string) {
		if len(list) == 0 {
			return
		}
		b.WriteString(style.Render(title) + "\n")
		for _, f := range list {
			fmt.Fprintf(&b, "  %s\n", rel(root, f))
		}
	}
	renderList("Rewritten:", successStyle, result.Rewritten)
	renderList("Created:", createdStyle, result.Created)

	if len(result.Failed) > 0 {
		b.WriteString(errorStyle.Render("Failed:") + "\n")
		for _, f := range result.Failed {
			fmt.Fprintf(&b, "  %s %s\n", rel(root, f.Path), dimStyle.Render(f.Phase.String()+": "+f.Err.Error()))
		}
	}
	return b.String()
}

// formatDryRun renders what a dry run would have done.
func formatDryRun(root string, overlay *workspace.OverlayStore) string {
	var b strings.Builder
	b.WriteString(warnStyle.Render("Dry run: nothing was written") + "\n\n")

	renames := overlay.Renames()
	if len(renames) > 0 {
		b.WriteString(movedStyle.Render("Would move:") + "\n")
		for _, r := range renames {
			fmt.Fprintf(&b, "  %s → %s\n", rel(root, r.From), rel(root, r.To))
		}
		b.WriteString("\n")
	}
	for _, d := range overlay.Diffs() {
		b.WriteString(d.Unified)
		if !strings.HasSuffix(d.Unified, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// confirm asks a yes/no question on out and reads the answer from in.
// Anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s %s ", warnStyle.Render(question), dimStyle.Render("[y/N]"))
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
