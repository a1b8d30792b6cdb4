// internal/progress/format.go
package progress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	headerPattern  = regexp.MustCompile(`(?m)^=== (?:SESSION (\d+)|(VALIDATION) SESSION): (.+?) ===[ \t]*$`)
	statusPattern  = regexp.MustCompile(`^Status:\s*(\d+)/(\d+) features passing \((\d+(?:\.\d+)?)%\)`)
	featurePattern = regexp.MustCompile(`^Feature #?(\d+):\s*(.*)$`)
)

// Format renders e in the progress file layout. Empty sections are
// written as "- None".
func Format(e Entry) string {
	var b strings.Builder
	if e.IsValidationSession {
		fmt.Fprintf(&b, "=== VALIDATION SESSION: %s ===\n", e.Timestamp)
	} else {
		fmt.Fprintf(&b, "=== SESSION %d: %s ===\n", e.SessionNumber, e.Timestamp)
	}
	fmt.Fprintf(&b, "Status: %d/%d features passing (%.1f%%)\n", e.Status.Passing, e.Status.Total, e.Status.Percentage)

	features := make([]string, 0, len(e.CompletedFeatures))
	for _, f := range e.CompletedFeatures {
		line := fmt.Sprintf("Feature #%d: %s", f.Index, f.Description)
		if f.VerificationMethod != "" {
			line += " - " + f.VerificationMethod
		}
		features = append(features, line)
	}
	writeSection(&b, sectionCompleted, features)
	writeSection(&b, sectionIssues, e.IssuesFound)
	writeSection(&b, sectionNext, e.NextSteps)
	writeSection(&b, sectionFiles, e.FilesModified)

	commits := none
	if len(e.GitCommits) > 0 {
		commits = strings.Join(e.GitCommits, ", ")
	}
	fmt.Fprintf(&b, "\n%s %s\n%s\n", gitCommitsPrefix, commits, Terminator)
	return b.String()
}

func writeSection(b *strings.Builder, title string, items []string) {
	fmt.Fprintf(b, "\n%s\n", title)
	if len(items) == 0 {
		fmt.Fprintf(b, "- %s\n", none)
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

// Parse extracts every structured entry from content. Text outside
// entries is skipped.
func Parse(content string) []Entry {
	headers := headerPattern.FindAllStringSubmatchIndex(content, -1)
	entries := make([]Entry, 0, len(headers))
	for i, h := range headers {
		end := len(content)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}

		var e Entry
		if h[4] >= 0 {
			e.IsValidationSession = true
		} else {
			e.SessionNumber, _ = strconv.Atoi(content[h[2]:h[3]])
		}
		e.Timestamp = strings.TrimSpace(content[h[6]:h[7]])
		parseBody(&e, content[h[1]:end])
		entries = append(entries, e)
	}
	return entries
}

func parseBody(e *Entry, body string) {
	var current *[]string
	var features []string

	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == Terminator || strings.HasPrefix(trimmed, Terminator):
			finishFeatures(e, features)
			return
		case trimmed == "":
			current = nil
		case statusPattern.MatchString(trimmed):
			m := statusPattern.FindStringSubmatch(trimmed)
			e.Status.Passing, _ = strconv.Atoi(m[1])
			e.Status.Total, _ = strconv.Atoi(m[2])
			e.Status.Percentage, _ = strconv.ParseFloat(m[3], 64)
			current = nil
		case trimmed == sectionCompleted:
			current = &features
		case trimmed == sectionIssues:
			current = &e.IssuesFound
		case trimmed == sectionNext:
			current = &e.NextSteps
		case trimmed == sectionFiles:
			current = &e.FilesModified
		case strings.HasPrefix(trimmed, gitCommitsPrefix):
			e.GitCommits = splitCommits(strings.TrimPrefix(trimmed, gitCommitsPrefix))
			current = nil
		case current != nil && strings.HasPrefix(line, "- "):
			// Only top-level bullets; indented sub-bullets are detail.
			if item := strings.TrimSpace(line[2:]); item != "" && item != none {
				*current = append(*current, item)
			}
		}
	}
	finishFeatures(e, features)
}

func finishFeatures(e *Entry, lines []string) {
	for _, line := range lines {
		if f, ok := parseFeature(line); ok {
			e.CompletedFeatures = append(e.CompletedFeatures, f)
		}
	}
}

// parseFeature reads "Feature #12: description - method". The method is
// whatever follows the last " - ".
func parseFeature(line string) (CompletedFeature, bool) {
	m := featurePattern.FindStringSubmatch(line)
	if m == nil {
		return CompletedFeature{}, false
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return CompletedFeature{}, false
	}
	f := CompletedFeature{Index: idx, Description: m[2]}
	if cut := strings.LastIndex(m[2], " - "); cut >= 0 {
		f.Description = strings.TrimSpace(m[2][:cut])
		f.VerificationMethod = strings.TrimSpace(m[2][cut+3:])
	}
	return f, true
}

func splitCommits(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == none {
		return nil
	}
	var commits []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			commits = append(commits, c)
		}
	}
	return commits
}
