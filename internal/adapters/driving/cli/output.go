package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// isTTY reports whether the command writes to a terminal.
func isTTY(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// painter colours result lines when writing to a terminal.
type painter struct {
	ok   *color.Color
	bad  *color.Color
	warn *color.Color
}

func newPainter(cmd *cobra.Command) painter {
	p := painter{
		ok:   color.New(color.FgGreen),
		bad:  color.New(color.FgRed),
		warn: color.New(color.FgYellow),
	}
	if isTTY(cmd) {
		p.ok.EnableColor()
		p.bad.EnableColor()
		p.warn.EnableColor()
	} else {
		p.ok.DisableColor()
		p.bad.DisableColor()
		p.warn.DisableColor()
	}
	return p
}

func (p painter) Ok(format string, a ...any) string   { return p.ok.Sprintf(format, a...) }
func (p painter) Bad(format string, a ...any) string  { return p.bad.Sprintf(format, a...) }
func (p painter) Warn(format string, a ...any) string { return p.warn.Sprintf(format, a...) }

// report styles the health report.
type report struct {
	title lipgloss.Style
	label lipgloss.Style
	good  lipgloss.Style
	bad   lipgloss.Style
	box   lipgloss.Style
}

func newReport(cmd *cobra.Command) report {
	if !isTTY(cmd) {
		plain := lipgloss.NewStyle()
		return report{title: plain, label: plain, good: plain, bad: plain, box: plain}
	}
	return report{
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		label: lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")).Width(22),
		good:  lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		bad:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")).Bold(true),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#45475A")).
			Padding(0, 1),
	}
}

func (r report) row(label string, value any) string {
	return r.label.Render(label+":") + " " + fmt.Sprint(value)
}

// printJSON writes v as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
