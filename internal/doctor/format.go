package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var statusSymbols = map[Status]string{
	StatusPass: "[✓]",
	StatusFail: "[✗]",
	StatusWarn: "[!]",
	StatusSkip: "[-]",
}

var statusStyles = map[Status]lipgloss.Style{
	StatusPass: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	StatusFail: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	StatusWarn: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	StatusSkip: lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
}

var bold = lipgloss.NewStyle().Bold(true)

type painter bool

func (p painter) paint(style lipgloss.Style, s string) string {
	if !p {
		return s
	}
	return style.Render(s)
}

// FormatText renders the report for a terminal.
func FormatText(r *Report, verbose, color bool) string {
	p := painter(color)
	var lines []string
	lines = append(lines, p.paint(bold, "Claude Agent Environment Check"), strings.Repeat("=", 30), "")

	if verbose {
		path := os.Getenv("PATH")
		if len(path) > 100 {
			path = path[:97] + "..."
		}
		lines = append(lines, "PATH: "+path, "")
	}

	projectTitle := "Project"
	if r.ProjectDir != "" {
		projectTitle = fmt.Sprintf("Project (%s)", r.ProjectDir)
	}
	groups := []struct {
		cat   Category
		title string
	}{
		{CategoryAuth, "Authentication"},
		{CategoryTools, "Required Tools"},
		{CategoryProject, projectTitle},
	}
	for _, g := range groups {
		var checks []CheckResult
		for _, c := range r.Checks {
			if c.Category == g.cat {
				checks = append(checks, c)
			}
		}
		if len(checks) == 0 {
			continue
		}
		lines = append(lines, p.paint(bold, g.title+":"))
		for _, c := range checks {
			version := ""
			if c.Version != "" {
				version = " (" + c.Version + ")"
			}
			lines = append(lines, fmt.Sprintf("  %s %s%s", p.paint(statusStyles[c.Status], statusSymbols[c.Status]), c.Message, version))
			if c.Status == StatusFail && c.FixCommand != "" {
				lines = append(lines, "      Run: "+c.FixCommand)
			}
			if verbose && c.Details != "" {
				for _, d := range strings.Split(c.Details, "\n") {
					if len(d) > 500 {
						d = d[:497] + "..."
					}
					lines = append(lines, "      "+d)
				}
			}
		}
		lines = append(lines, "")
	}

	if r.Stack != "" {
		lines = append(lines, "Stack detected: "+r.Stack, "")
	}

	switch {
	case !r.Healthy():
		lines = append(lines,
			p.paint(statusStyles[StatusFail], fmt.Sprintf("Summary: %d error(s), %d warning(s)", r.ErrorCount(), r.WarningCount())),
			"Run 'claude-agent doctor --fix' to attempt automatic fixes.")
	case r.WarningCount() > 0:
		lines = append(lines,
			p.paint(statusStyles[StatusWarn], fmt.Sprintf("Summary: All checks passed with %d warning(s)", r.WarningCount())),
			"Run 'claude-agent' to start your coding session.")
	default:
		lines = append(lines,
			p.paint(statusStyles[StatusPass], "Summary: All checks passed!"),
			"Run 'claude-agent' to start your coding session.")
	}
	return strings.Join(lines, "\n")
}

type jsonSummary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Passed   int `json:"passed"`
}

type jsonReport struct {
	ProjectDir string        `json:"project_dir"`
	Stack      string        `json:"stack"`
	Summary    jsonSummary   `json:"summary"`
	IsHealthy  bool          `json:"is_healthy"`
	Checks     []CheckResult `json:"checks"`
}

// FormatJSON renders the report as indented JSON.
func FormatJSON(r *Report) ([]byte, error) {
	checks := r.Checks
	if checks == nil {
		checks = []CheckResult{}
	}
	return json.MarshalIndent(jsonReport{
		ProjectDir: r.ProjectDir,
		Stack:      r.Stack,
		Summary: jsonSummary{
			Errors:   r.ErrorCount(),
			Warnings: r.WarningCount(),
			Passed:   r.PassCount(),
		},
		IsHealthy: r.Healthy(),
		Checks:    checks,
	}, "", "  ")
}
