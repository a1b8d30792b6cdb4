package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/claude-agent/internal/clierr"
	"github.com/fyrsmithlabs/claude-agent/internal/logging"
)

var (
	logsSession string
	logsEvent   string
	logsLevel   string
	logsSince   string
	logsLimit   int
	logsJSON    bool
)

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsStatsCmd)

	f := logsCmd.Flags()
	f.StringVar(&logsSession, "session", "", "only show entries for this session ID")
	f.StringVar(&logsEvent, "event", "", "comma-separated event types (e.g. security_block,error)")
	f.StringVar(&logsLevel, "level", "", "comma-separated levels (debug, info, warning, error)")
	f.StringVar(&logsSince, "since", "", "only entries newer than this (30m, 2h, 1d, 1w or an ISO date)")
	f.IntVar(&logsLimit, "limit", logging.DefaultQueryLimit, "maximum number of entries")
	logsCmd.PersistentFlags().BoolVar(&logsJSON, "json", false, "output as JSON")
}

var logsCmd = &cobra.Command{
	Use:   "logs [project_dir]",
	Short: "Query the agent log",
	Long: `Query the structured agent log written during runs, newest first.

Examples:
  # Last 50 entries
  claude-agent logs ./my-project

  # Blocked commands in the last day
  claude-agent logs ./my-project --event security_block --since 1d

  # One session as JSON
  claude-agent logs ./my-project --session 3f2a9c1b7d4e --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

var logsStatsCmd = &cobra.Command{
	Use:   "stats [project_dir]",
	Short: "Show per-session statistics",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogsStats,
}

func runLogs(cmd *cobra.Command, args []string) error {
	dir, err := projectDir(args)
	if err != nil {
		return err
	}
	q, err := logsQuery(time.Now())
	if err != nil {
		return err
	}

	logDir := logging.NewDefaultConfig(dir).Dir
	if _, err := os.Stat(logDir); err != nil {
		cmd.Printf("No agent logs found in %s\n", logDir)
		return nil
	}
	entries, err := logging.NewReader(logDir).Read(q)
	if err != nil {
		return fmt.Errorf("failed to read logs: %w", err)
	}

	if logsJSON {
		if entries == nil {
			entries = []logging.Entry{}
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal entries: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(entries) == 0 {
		cmd.Println("No matching log entries")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tLEVEL\tSESSION\tEVENT\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Level, e.SessionID, e.Event, formatData(e.Data))
	}
	return w.Flush()
}

// logsQuery builds the reader query from the flags.
func logsQuery(now time.Time) (logging.Query, error) {
	q := logging.Query{SessionID: logsSession, Limit: logsLimit}
	for _, name := range splitList(logsEvent) {
		event := logging.EventType(name)
		if !slices.Contains(logging.AllEventTypes(), event) {
			return q, clierr.New(fmt.Sprintf("unknown event type %q", name),
				fmt.Sprintf("Valid event types: %s", joinEvents(logging.AllEventTypes())),
				"claude-agent logs --event security_block", "")
		}
		q.EventTypes = append(q.EventTypes, event)
	}
	q.Levels = splitList(logsLevel)
	if logsSince != "" {
		since, err := logging.ParseSince(logsSince, now)
		if err != nil {
			return q, clierr.New(err.Error(), "--since accepts 30m, 2h, 1d, 1w or an ISO date",
				"claude-agent logs --since 2h", "")
		}
		q.Since = since
	}
	return q, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func joinEvents(events []logging.EventType) string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}

// formatData renders event data as sorted key=value pairs.
func formatData(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, data[k])
	}
	return strings.Join(parts, " ")
}

func runLogsStats(cmd *cobra.Command, args []string) error {
	dir, err := projectDir(args)
	if err != nil {
		return err
	}
	stats := logging.NewReader(logging.NewDefaultConfig(dir).Dir).Stats()

	if logsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(stats.Sessions) == 0 {
		cmd.Println("No session statistics recorded yet")
		return nil
	}
	a := stats.Aggregate
	cmd.Printf("Sessions: %d  Turns: %d  Duration: %s  Features completed: %d  Security blocks: %d\n\n",
		a.TotalSessions, a.TotalTurns,
		time.Duration(a.TotalDurationSeconds*float64(time.Second)).Round(time.Second),
		a.TotalFeaturesCompleted, a.TotalSecurityBlocks)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tAGENT\tSTARTED\tTURNS\tDURATION\tFEATURES\tBLOCKS\tERRORS")
	for _, s := range stats.Sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.0fs\t%d\t%d\t%d\n",
			s.SessionID, s.AgentType, s.StartTime.Local().Format("2006-01-02 15:04"),
			s.TurnsUsed, s.DurationSeconds, len(s.FeaturesCompleted), s.SecurityBlocks, s.Errors)
	}
	return w.Flush()
}
