package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/claude-agent/internal/progress"
)

// recentNoteLines is how much of the latest progress entry status shows.
const recentNoteLines = 20

// FormatPercentage formats a ratio (0-1) as percentage
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// FormatDuration formats a duration as "Xh Ym", "Xm" or "Xs".
func FormatDuration(d time.Duration) string {
	seconds := int64(d.Seconds())
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// FormatCounts renders "P/T passing" with the manual split when there
// are manual tests.
func FormatCounts(s Snapshot) string {
	c := s.Counts
	if c.Total == 0 {
		return "feature_list.json not yet created"
	}
	out := fmt.Sprintf("%d/%d passing (%s)", c.Passing, c.Total, FormatPercentage(s.Ratio()))
	if c.ManualTotal > 0 {
		out += fmt.Sprintf(", automated %d/%d, manual %d/%d",
			c.AutomatedPassing, c.AutomatedTotal, c.ManualPassing, c.ManualTotal)
	}
	return out
}

// FormatText renders the plain status report.
func FormatText(s Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nProject: %s\n", s.ProjectDir)
	fmt.Fprintf(&b, "Stack:   %s\n", s.Stack)
	fmt.Fprintf(&b, "State:   %s\n", s.State)
	if s.Branch != "" {
		fmt.Fprintf(&b, "Branch:  %s\n", s.Branch)
	}
	fmt.Fprintf(&b, "Spec:    %s\n", s.SpecPhase)
	fmt.Fprintf(&b, "\nProgress: %s\n", FormatCounts(s))
	if s.Rejections > 0 {
		fmt.Fprintf(&b, "Validator rejections: %d\n", s.Rejections)
	}
	if s.Locked {
		b.WriteString("Architecture: locked\n")
	}
	if s.SessionActive {
		b.WriteString("A session is running.\n")
	}
	if s.Sessions > 0 {
		fmt.Fprintf(&b, "Coding sessions: %d, velocity %s\n", s.Sessions, s.Indicators.VelocityTrend)
	}

	if s.Latest != nil {
		b.WriteString("\nRecent progress notes:\n")
		lines := strings.Split(strings.TrimSpace(progress.Format(*s.Latest)), "\n")
		if len(lines) > recentNoteLines {
			lines = lines[len(lines)-recentNoteLines:]
		}
		for _, l := range lines {
			fmt.Fprintf(&b, "  %s\n", l)
		}
	}
	return b.String()
}
