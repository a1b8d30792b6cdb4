package doctor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// FixType classifies a fix attempt.
type FixType string

const (
	FixFixed      FixType = "fixed"
	FixManual     FixType = "manual"
	FixFailed     FixType = "failed"
	FixSuggestion FixType = "suggestion"
)

// FixResult describes one remediation attempt.
type FixResult struct {
	Name    string  `json:"name"`
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Type    FixType `json:"fix_type"`
}

// installTimeout bounds npm install -g.
const installTimeout = 2 * time.Minute

var systemTools = map[string]bool{
	NameClaude: true, NameGit: true, NameNode: true, NameNpm: true,
	NamePython: true, NamePip: true, NameUv: true, NamePipOrUv: true,
}

// Fix attempts safe remediations for the failed checks in r. confirm is
// asked before anything is installed; nil declines.
func (d *Doctor) Fix(ctx context.Context, r *Report, confirm func(prompt string) bool) []FixResult {
	var results []FixResult
	for _, c := range r.Checks {
		if c.Status != StatusFail {
			continue
		}
		switch {
		case c.Name == NameProject:
			if err := os.MkdirAll(r.ProjectDir, 0o755); err != nil {
				results = append(results, FixResult{Name: c.Name, Message: fmt.Sprintf("Failed to create directory: %v", err), Type: FixFailed})
			} else {
				results = append(results, FixResult{Name: c.Name, Success: true, Message: "Created directory: " + r.ProjectDir, Type: FixFixed})
			}

		case c.Name == NamePuppeteer:
			if confirm == nil || !confirm("Install puppeteer-mcp-server globally?") {
				results = append(results, FixResult{Name: c.Name, Message: "User declined installation", Type: FixManual})
				continue
			}
			if _, stderr, ok := d.probe(ctx, installTimeout, "npm", "install", "-g", "puppeteer-mcp-server"); ok {
				results = append(results, FixResult{Name: c.Name, Success: true, Message: "Installed puppeteer-mcp-server", Type: FixFixed})
			} else {
				results = append(results, FixResult{Name: c.Name, Message: "Install failed: " + head(stderr, 100), Type: FixFailed})
			}

		case c.Name == NameConfig && strings.Contains(strings.ToLower(c.Message), "not found"):
			results = append(results, FixResult{Name: c.Name, Message: "Run 'claude-agent init' to create config file", Type: FixSuggestion})

		case c.Name == NameConfig:
			results = append(results, FixResult{Name: c.Name, Message: "Manual fix required for config file errors", Type: FixManual})

		case systemTools[c.Name]:
			fix := c.FixCommand
			if fix == "" {
				fix = "see documentation"
			}
			results = append(results, FixResult{Name: c.Name, Message: "Manual installation required: " + fix, Type: FixManual})
		}
	}
	return results
}

var (
	fixSymbols = map[FixType]string{
		FixFixed:      "[✓]",
		FixManual:     "[!]",
		FixFailed:     "[✗]",
		FixSuggestion: "[→]",
	}
	fixStyles = map[FixType]lipgloss.Style{
		FixFixed:      lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		FixManual:     lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		FixFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		FixSuggestion: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	}
)

// FormatFixes renders fix results.
func FormatFixes(results []FixResult, color bool) string {
	if len(results) == 0 {
		return "No fixes attempted."
	}
	p := painter(color)
	lines := []string{"", p.paint(bold, "Fix Results:")}
	for _, r := range results {
		symbol, ok := fixSymbols[r.Type]
		if !ok {
			symbol = "[-]"
		}
		label := strings.ToUpper(string(r.Type[:1])) + string(r.Type[1:])
		style := fixStyles[r.Type]
		lines = append(lines, fmt.Sprintf("  %s %s: %s", p.paint(style, symbol), p.paint(style, label), r.Message))
	}
	return strings.Join(lines, "\n")
}
