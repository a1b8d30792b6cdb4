// internal/verdict/report.go
package verdict

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/claude-agent/internal/ledger"
)

// ReportVerdict is the outcome of a spec validation report.
type ReportVerdict struct {
	Passed      bool   `json:"passed"`
	Verdict     string `json:"verdict"`
	Blocking    int    `json:"blocking"`
	Warnings    int    `json:"warnings"`
	Suggestions int    `json:"suggestions"`
	// Error is set when the report is missing or the verdict was inferred.
	Error string `json:"error,omitempty"`
}

var (
	resultBlockPattern = regexp.MustCompile(`(?is)<!--\s*VALIDATION_RESULT\s*(.*?)-->`)
	blockFieldPattern  = regexp.MustCompile(`(?im)^\s*(verdict|blocking|warnings|suggestions)\s*:\s*(\S+)`)
	boldVerdictPattern = regexp.MustCompile(`(?i)\*\*Verdict:\s*(PASS|FAIL)\*\*`)
	blockingRowPattern = regexp.MustCompile(`(?i)\|\s*BLOCKING\s*\|\s*(\d+)\s*\|`)
	warningRowPattern  = regexp.MustCompile(`(?i)\|\s*WARNINGS?\s*\|\s*(\d+)\s*\|`)
	suggestRowPattern  = regexp.MustCompile(`(?i)\|\s*SUGGESTIONS?\s*\|\s*(\d+)\s*\|`)
)

// ParseValidationReport reads spec-validation.md from the project and
// extracts its verdict:
//
//  1. the <!-- VALIDATION_RESULT ... --> block
//  2. a bold "**Verdict: PASS|FAIL**" plus severity table counts
//  3. the BLOCKING table count alone, with Error noting the inference
func ParseValidationReport(projectDir string) ReportVerdict {
	path := ledger.FindSpecValidationReport(projectDir)
	if path == "" {
		return ReportVerdict{Verdict: "UNKNOWN", Error: "spec-validation.md not found"}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ReportVerdict{Verdict: "UNKNOWN", Error: "Failed to read spec-validation.md: " + err.Error()}
	}
	return ParseReportText(string(data))
}

// ParseReportText applies the report strategies to already loaded text.
func ParseReportText(content string) ReportVerdict {
	if m := resultBlockPattern.FindStringSubmatch(content); m != nil {
		var v ReportVerdict
		for _, f := range blockFieldPattern.FindAllStringSubmatch(m[1], -1) {
			switch strings.ToLower(f[1]) {
			case "verdict":
				v.Verdict = strings.ToUpper(f[2])
			case "blocking":
				v.Blocking = atoi(f[2])
			case "warnings":
				v.Warnings = atoi(f[2])
			case "suggestions":
				v.Suggestions = atoi(f[2])
			}
		}
		if v.Verdict != "" {
			v.Passed = v.Verdict == "PASS"
			return v
		}
	}

	counts := ReportVerdict{
		Blocking:    firstCount(blockingRowPattern, content),
		Warnings:    firstCount(warningRowPattern, content),
		Suggestions: firstCount(suggestRowPattern, content),
	}

	if m := boldVerdictPattern.FindStringSubmatch(content); m != nil {
		counts.Verdict = strings.ToUpper(m[1])
		counts.Passed = counts.Verdict == "PASS"
		return counts
	}

	if blockingRowPattern.MatchString(content) {
		counts.Verdict = "FAIL"
		if counts.Blocking == 0 {
			counts.Verdict = "PASS"
		}
		counts.Passed = counts.Verdict == "PASS"
		counts.Error = "Inferred verdict from blocking count (no explicit verdict found)"
		return counts
	}

	return ReportVerdict{Verdict: "UNKNOWN", Error: "Could not parse verdict from spec-validation.md"}
}

func firstCount(p *regexp.Regexp, s string) int {
	if m := p.FindStringSubmatch(s); m != nil {
		return atoi(m[1])
	}
	return 0
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
