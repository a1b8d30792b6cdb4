// internal/metrics/parse.go
package metrics

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/claude-agent/internal/security"
)

var (
	regressionHeader = regexp.MustCompile(`(?i)REGRESSION\s+VERIFICATION`)
	// regressionEnd marks where the regression section stops.
	regressionEnd = regexp.MustCompile(`(?i)###|IMPLEMENTATION\s+PLAN`)
	failVerdict   = regexp.MustCompile(`(?i):\s*FAIL\b`)
)

// ParseEvaluationSections reports which coding evaluation sections
// ("context", "regression", "plan") appear in output, and whether all of
// them do.
func ParseEvaluationSections(output string) (sections []string, complete bool) {
	sections = security.SectionsPresent(output, security.AgentCoding)
	return sections, len(sections) == len(security.RequiredSections(security.AgentCoding))
}

// CountRegressions counts ": FAIL" verdicts inside the REGRESSION
// VERIFICATION section. The section runs from its header to the next
// "###" header, the implementation plan, or the end of output. found is
// false when there is no such section.
func CountRegressions(output string) (count int, found bool) {
	loc := regressionHeader.FindStringIndex(output)
	if loc == nil {
		return 0, false
	}
	section := output[loc[0]:]
	if end := regressionEnd.FindStringIndex(output[loc[1]:]); end != nil {
		section = output[loc[0] : loc[1]+end[0]]
	}
	return len(failVerdict.FindAllStringIndex(section, -1)), true
}

// EvaluationCompleteness is the fraction of coding evaluation sections
// present in sections. Unknown names are ignored.
func EvaluationCompleteness(sections []string) float64 {
	required := security.RequiredSections(security.AgentCoding)
	if len(required) == 0 {
		return 0
	}
	seen := map[string]bool{}
	for _, s := range sections {
		seen[strings.ToLower(strings.TrimSpace(s))] = true
	}
	n := 0
	for _, r := range required {
		if seen[r] {
			n++
		}
	}
	return float64(n) / float64(len(required))
}
