// internal/logging/reader.go
package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Entry is one decoded line of the agent log.
type Entry struct {
	Timestamp time.Time      `json:"ts"`
	Level     string         `json:"level"`
	Event     EventType      `json:"event"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Query filters log entries. Zero values mean "no filter".
type Query struct {
	SessionID  string
	EventTypes []EventType
	Levels     []string
	Since      time.Time
	Limit      int
	Offset     int
}

// DefaultQueryLimit is used when Query.Limit is zero.
const DefaultQueryLimit = 50

// Reader queries the agent log on disk.
type Reader struct {
	dir string
}

// NewReader creates a reader for a log directory.
func NewReader(logDir string) *Reader {
	return &Reader{dir: logDir}
}

// files returns the active log followed by rotated backups, newest first.
func (r *Reader) files() []string {
	files := []string{filepath.Join(r.dir, LogFileName)}
	backups, _ := filepath.Glob(filepath.Join(r.dir, "agent-*.log"))
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return append(files, backups...)
}

// Read returns entries matching q, newest first.
func (r *Reader) Read(q Query) ([]Entry, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultQueryLimit
	}
	levels := make([]string, 0, len(q.Levels))
	for _, l := range q.Levels {
		levels = append(levels, normalizeLevel(l))
	}

	var entries []Entry
	for _, path := range r.files() {
		err := scanEntries(path, func(e Entry) {
			if q.SessionID != "" && e.SessionID != q.SessionID {
				return
			}
			if len(q.EventTypes) > 0 && !slices.Contains(q.EventTypes, e.Event) {
				return
			}
			if len(levels) > 0 && !slices.Contains(levels, normalizeLevel(e.Level)) {
				return
			}
			if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
				return
			}
			entries = append(entries, e)
		})
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if q.Offset >= len(entries) {
		return []Entry{}, nil
	}
	end := min(q.Offset+q.Limit, len(entries))
	return entries[q.Offset:end], nil
}

// IsSessionActive reports whether some session started but never ended
// in the active log file.
func (r *Reader) IsSessionActive() bool {
	active := map[string]bool{}
	_ = scanEntries(filepath.Join(r.dir, LogFileName), func(e Entry) {
		switch e.Event {
		case EventSessionStart:
			active[e.SessionID] = true
		case EventSessionEnd:
			delete(active, e.SessionID)
		}
	})
	return len(active) > 0
}

// Stats loads sessions.json from the log directory.
func (r *Reader) Stats() StatsFile {
	return LoadStats(r.dir)
}

// scanEntries decodes every well-formed line of path. Missing files are
// skipped; malformed lines are ignored.
func scanEntries(path string, fn func(Entry)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if e, ok := parseEntry(scanner.Bytes()); ok {
			fn(e)
		}
	}
	return scanner.Err()
}

func parseEntry(line []byte) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		return Entry{}, false
	}
	tsStr, _ := raw["ts"].(string)
	event, _ := raw["event"].(string)
	if tsStr == "" || event == "" {
		return Entry{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return Entry{}, false
	}

	e := Entry{
		Timestamp: ts,
		Event:     EventType(event),
		Data:      map[string]any{},
	}
	e.Level, _ = raw["level"].(string)
	e.SessionID, _ = raw["session_id"].(string)
	for k, v := range raw {
		switch k {
		case "ts", "level", "event", "session_id":
		default:
			e.Data[k] = v
		}
	}
	return e, true
}

func normalizeLevel(l string) string {
	l = strings.ToLower(l)
	if l == "warning" {
		return "warn"
	}
	return l
}

// ParseSince converts a --since value into a time. It accepts relative
// durations ("30m", "1h", "2d", "1w") and ISO dates or datetimes, which
// are taken as UTC when they carry no zone.
func ParseSince(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty since value")
	}

	unit := value[len(value)-1]
	if strings.IndexByte("mhdw", unit) >= 0 {
		n, err := strconv.Atoi(value[:len(value)-1])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid relative time: %s", value)
		}
		var step time.Duration
		switch unit {
		case 'm':
			step = time.Minute
		case 'h':
			step = time.Hour
		case 'd':
			step = 24 * time.Hour
		case 'w':
			step = 7 * 24 * time.Hour
		}
		return now.UTC().Truncate(time.Second).Add(-time.Duration(n) * step), nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse time: %s", value)
}
