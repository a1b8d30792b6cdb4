package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/claude-agent/internal/ledger"
	"github.com/fyrsmithlabs/claude-agent/internal/metrics"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
)

// Model is the bubbletea model behind status --watch.
type Model struct {
	source   Source
	interval time.Duration
	// changes is nil when no file watcher is running.
	changes  <-chan struct{}
	snap     Snapshot
	loaded   bool
	quitting bool

	bar progress.Model
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard that refreshes every interval and whenever
// changes fires. changes may be nil.
func NewModel(source Source, interval time.Duration, changes <-chan struct{}) Model {
	return Model{
		source:   source,
		interval: interval,
		changes:  changes,
		bar: progress.New(
			progress.WithGradient("#ff0000", "#00ff00"),
			progress.WithWidth(40),
		),
	}
}

// stateBadge colors the session state.
func stateBadge(state ledger.SessionState) string {
	switch state {
	case ledger.StateComplete:
		return healthyStyle.Render("✓ " + strings.ToUpper(string(state)))
	case ledger.StatePendingValidation, ledger.StateValidating:
		return warningStyle.Render("⚠ " + strings.ToUpper(string(state)))
	case ledger.StateFresh:
		return dimStyle.Render(strings.ToUpper(string(state)))
	default:
		return valueStyle.Render(strings.ToUpper(string(state)))
	}
}

// trendBadge colors the velocity trend.
func trendBadge(trend string) string {
	switch trend {
	case metrics.TrendIncreasing:
		return healthyStyle.Render("[↑]")
	case metrics.TrendDecreasing:
		return errorStyle.Render("[↓]")
	default:
		return dimStyle.Render("[→]")
	}
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	spark.PushAll(data)
	spark.Draw()

	return sparklineStyle.Render(spark.View())
}

// Message types
type tickMsg time.Time
type changeMsg struct{}
type snapshotMsg Snapshot

// Init starts the refresh timer, the first read and the change listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		collect(m.source),
		waitForChange(m.changes),
	)
}

// tick creates a tick command for auto-refresh
func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func collect(source Source) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(source.Collect(context.Background()))
	}
}

// waitForChange blocks until the watcher signals. A nil channel never
// fires, so no command is scheduled.
func waitForChange(changes <-chan struct{}) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return changeMsg{}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, collect(m.source)
		}

	case tickMsg:
		return m, tea.Batch(tick(m.interval), collect(m.source))

	case changeMsg:
		return m, tea.Batch(collect(m.source), waitForChange(m.changes))

	case snapshotMsg:
		m.snap = Snapshot(msg)
		m.loaded = true
		return m, nil
	}

	return m, nil
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.loaded {
		return containerStyle.Render(headerStyle.Render(" claude-agent ") + "\n\n" + dimStyle.Render("Loading..."))
	}
	return m.renderDashboard()
}

func (m Model) renderDashboard() string {
	s := m.snap
	var b strings.Builder

	b.WriteString(headerStyle.Render(" claude-agent "))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s   %s   %s\n",
		stateBadge(s.State),
		valueStyle.Render(s.ProjectDir),
		dimStyle.Render(s.TakenAt.Format("3:04:05 PM")))
	b.WriteString(labelStyle.Render("  Stack: ") + valueStyle.Render(s.Stack))
	if s.Branch != "" {
		b.WriteString(labelStyle.Render("  Branch: ") + valueStyle.Render(s.Branch))
	}
	b.WriteString("\n")

	b.WriteString("\n" + sectionStyle.Render("┃ Features") + "\n")
	b.WriteString(labelStyle.Render("  Passing: ") + m.bar.ViewAs(s.Ratio()) +
		" " + dimStyle.Render(FormatCounts(s)) + "\n")
	if s.Rejections > 0 {
		b.WriteString(labelStyle.Render("  Rejections: ") + warningStyle.Render(fmt.Sprintf("%d", s.Rejections)) + "\n")
	}
	b.WriteString(labelStyle.Render("  Spec: ") + valueStyle.Render(string(s.SpecPhase)))
	if s.Locked {
		b.WriteString(labelStyle.Render("  Architecture: ") + healthyStyle.Render("locked"))
	}
	b.WriteString("\n")

	b.WriteString("\n" + sectionStyle.Render("┃ Drift") + "\n")
	b.WriteString(labelStyle.Render("  Velocity: ") +
		valueStyle.Render(s.Indicators.VelocityTrend) + " " + trendBadge(s.Indicators.VelocityTrend) +
		"   " + createSparkline(s.Velocity) + "\n")
	b.WriteString(labelStyle.Render("  Sessions: ") + valueStyle.Render(fmt.Sprintf("%d", s.Sessions)) +
		labelStyle.Render("  Regressions: ") + valueStyle.Render(fmt.Sprintf("%.1f%%", s.Indicators.RegressionRate)) +
		labelStyle.Render("  Rejected: ") + valueStyle.Render(fmt.Sprintf("%.1f%%", s.Indicators.RejectionRate)) + "\n")

	if s.Latest != nil {
		title := fmt.Sprintf("┃ Session %d", s.Latest.SessionNumber)
		if s.Latest.IsValidationSession {
			title = "┃ Validation"
		}
		b.WriteString("\n" + sectionStyle.Render(title) + "\n")
		for _, f := range s.Latest.CompletedFeatures {
			fmt.Fprintf(&b, "  %s #%d %s\n", healthyStyle.Render("✓"), f.Index, f.Description)
		}
		for _, next := range s.Latest.NextSteps {
			fmt.Fprintf(&b, "  %s %s\n", dimStyle.Render("→"), next)
		}
	}
	if s.SessionActive {
		b.WriteString("\n" + warningStyle.Render("● session running") + "\n")
	}

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))
	b.WriteString("\n" + footer)

	return containerStyle.Render(b.String())
}
