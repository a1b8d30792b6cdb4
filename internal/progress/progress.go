// Package progress reads and writes claude-progress.txt, the handoff notes
// each agent session leaves for the next one.
//
// An entry looks like:
//
//	=== SESSION 3: 2024-01-15T14:30:00Z ===
//	Status: 25/50 features passing (50.0%)
//
//	Completed This Session:
//	- Feature #12: Contact form - browser automation
//
//	Issues Found:
//	- None
//
//	Next Steps:
//	- Work on Feature #13 next
//
//	Files Modified:
//	- src/form.tsx
//
//	Git Commits: a1b2c3d, e4f5g6h
//	=========================================
//
// Validation sessions use "=== VALIDATION SESSION: <ts> ===" and carry no
// session number. Free-form notes that do not follow the format are
// ignored rather than rejected.
package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the progress notes file in the project directory.
const FileName = "claude-progress.txt"

// Terminator closes every entry.
var Terminator = strings.Repeat("=", 41)

// Section titles as they appear in the file.
const (
	sectionCompleted = "Completed This Session:"
	sectionIssues    = "Issues Found:"
	sectionNext      = "Next Steps:"
	sectionFiles     = "Files Modified:"
	gitCommitsPrefix = "Git Commits:"
	none             = "None"
)

// Status is the pass count recorded with an entry.
type Status struct {
	Passing    int
	Total      int
	Percentage float64
}

// NewStatus computes the percentage for passing of total.
func NewStatus(passing, total int) Status {
	s := Status{Passing: passing, Total: total}
	if total > 0 {
		s.Percentage = float64(passing) / float64(total) * 100
	}
	return s
}

// CompletedFeature is one line of the "Completed This Session" section.
type CompletedFeature struct {
	Index              int
	Description        string
	VerificationMethod string
}

// Entry is one session's notes.
type Entry struct {
	// SessionNumber is 0 for validation sessions.
	SessionNumber       int
	Timestamp           string
	Status              Status
	CompletedFeatures   []CompletedFeature
	IssuesFound         []string
	NextSteps           []string
	FilesModified       []string
	GitCommits          []string
	IsValidationSession bool
}

// Path returns the progress file path for a project.
func Path(projectDir string) string {
	return filepath.Join(projectDir, FileName)
}

// Load parses the project's progress file. A missing file yields no
// entries.
func Load(projectDir string) ([]Entry, error) {
	data, err := os.ReadFile(Path(projectDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read progress notes: %w", err)
	}
	return Parse(string(data)), nil
}

// LatestEntry returns the last entry in the project's progress file, or
// nil when there is none or the file cannot be read.
func LatestEntry(projectDir string) *Entry {
	entries, err := Load(projectDir)
	if err != nil || len(entries) == 0 {
		return nil
	}
	return &entries[len(entries)-1]
}

// NextSessionID returns one more than the highest coding session number
// in the progress file, or 1 when there is none. Validation sessions do
// not count.
func NextSessionID(projectDir string) int {
	entries, err := Load(projectDir)
	if err != nil {
		return 1
	}
	highest := 0
	for _, e := range entries {
		if !e.IsValidationSession && e.SessionNumber > highest {
			highest = e.SessionNumber
		}
	}
	return highest + 1
}

// Append formats e and appends it to the project's progress file,
// separated from earlier entries by a blank line.
func Append(projectDir string, e Entry) error {
	path := Path(projectDir)
	prefix := ""
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		prefix = "\n"
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open progress notes: %w", err)
	}
	if _, err := f.WriteString(prefix + Format(e)); err != nil {
		f.Close()
		return fmt.Errorf("append progress notes: %w", err)
	}
	return f.Close()
}
