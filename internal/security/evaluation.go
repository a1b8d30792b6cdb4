// internal/security/evaluation.go
package security

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Agent types that carry required evaluation sections.
const (
	AgentCoding      = "coding"
	AgentInitializer = "initializer"
	AgentValidator   = "validator"
)

// Actions returned by ValidateEvaluationSections.
const (
	ActionProceed = "proceed"
	ActionRetry   = "retry"
	ActionAbort   = "abort"
)

type sectionSpec struct {
	name     string
	header   *regexp.Regexp
	guidance string
}

// stepPrefix allows "Step A - ", "Step 2 – " and similar before a title.
func sectionHeader(stepChars, title string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t]*#{2,3}[ \t]*(?:Step[ \t]*[` + stepChars + `]*[ \t]*[-–—]?[ \t]*)?` + title)
}

var agentSections = map[string][]sectionSpec{
	AgentCoding: {
		{"context", sectionHeader("A-Z0-9", `CONTEXT\s+VERIFICATION`),
			"### Step A - CONTEXT VERIFICATION\nInclude: feature_list.json quote, progress notes quote, architectural constraints"},
		{"regression", sectionHeader("A-Z0-9", `REGRESSION\s+VERIFICATION`),
			"### Step B - REGRESSION VERIFICATION\nInclude: Test results for previously passing features with PASS/FAIL verdicts"},
		{"plan", sectionHeader("A-Z0-9", `IMPLEMENTATION\s+PLAN`),
			"### Step C - IMPLEMENTATION PLAN\nInclude: What you will build, files to modify, constraints to honor"},
	},
	AgentInitializer: {
		{"spec_decomposition", sectionHeader("0-9", `SPEC\s+DECOMPOSITION`),
			"### Step 1 - SPEC DECOMPOSITION\nInclude: Section headers quoted, key requirements listed, ambiguities noted"},
		{"feature_mapping", sectionHeader("0-9", `FEATURE\s+MAPPING`),
			"### Step 2 - FEATURE MAPPING\nInclude: Each feature with spec text traceability quote"},
		{"coverage_check", sectionHeader("0-9", `COVERAGE\s+CHECK`),
			"### Step 3 - COVERAGE CHECK\nInclude: Requirements covered count, any uncovered requirements listed"},
	},
	AgentValidator: {
		{"spec_alignment", sectionHeader("A-Z", `SPEC\s+ALIGNMENT\s+CHECK`),
			"### Step A - SPEC ALIGNMENT CHECK\nInclude: Feature description, spec requirement quote, 'working' criteria"},
		{"test_execution", sectionHeader("A-Z", `TEST\s+EXECUTION\s+WITH\s+EVIDENCE`),
			"### Step B - TEST EXECUTION WITH EVIDENCE\nInclude: Steps performed, expected/actual results, screenshot reference, PASS/FAIL"},
		{"aggregate_verdict", sectionHeader("A-Z", `AGGREGATE\s+VERDICT`),
			"### Step C - AGGREGATE VERDICT WITH REASONING\nInclude: Features tested count, pass/fail counts, verdict reasoning"},
	},
}

var (
	codeBlockPattern = regexp.MustCompile("(?s)```[^\\n]*\\n.*?```")
	anyHeaderPattern = regexp.MustCompile(`(?m)^[ \t]*#{2,3}\s`)
)

// StripCodeBlocks removes fenced code blocks so example headers inside
// them are not mistaken for real sections.
func StripCodeBlocks(text string) string {
	return codeBlockPattern.ReplaceAllString(text, "")
}

// RequiredSections returns the section names for an agent type, or nil.
func RequiredSections(agentType string) []string {
	specs := agentSections[agentType]
	if specs == nil {
		return nil
	}
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.name)
	}
	return names
}

// SectionsPresent returns, in declaration order, the required sections of
// agentType whose header appears in output outside code fences. Unlike
// ExtractEvaluationSections it does not require a body.
func SectionsPresent(output, agentType string) []string {
	cleaned := StripCodeBlocks(output)
	found := []string{}
	for _, spec := range agentSections[agentType] {
		if spec.header.MatchString(cleaned) {
			found = append(found, spec.name)
		}
	}
	return found
}

// EvaluationResult describes how complete an agent's evaluation was.
type EvaluationResult struct {
	Valid           bool
	Action          string
	ErrorMessage    string
	SectionsFound   []string
	SectionsMissing []string
	SectionContent  map[string]string
	Completeness    float64
}

// ExtractEvaluationSections returns the non-empty body of every required
// section present in output. A body runs from the line after its header
// to the next level 2 or 3 header.
func ExtractEvaluationSections(output, agentType string) map[string]string {
	out := map[string]string{}
	cleaned := StripCodeBlocks(output)
	for _, spec := range agentSections[agentType] {
		loc := spec.header.FindStringIndex(cleaned)
		if loc == nil {
			continue
		}
		nl := strings.IndexByte(cleaned[loc[1]:], '\n')
		if nl < 0 {
			continue
		}
		body := cleaned[loc[1]+nl+1:]
		if next := anyHeaderPattern.FindStringIndex(body); next != nil {
			body = body[:next[0]]
		}
		if body = strings.TrimSpace(body); body != "" {
			out[spec.name] = body
		}
	}
	return out
}

// ValidateEvaluationSections checks that output contains every evaluation
// section its agent type requires. Lenient mode reports missing sections
// but proceeds; strict mode asks for a retry with guidance. Unknown agent
// types abort.
func ValidateEvaluationSections(output, agentType string, strict bool) EvaluationResult {
	specs, ok := agentSections[agentType]
	if !ok {
		known := make([]string, 0, len(agentSections))
		for k := range agentSections {
			known = append(known, k)
		}
		sort.Strings(known)
		return EvaluationResult{
			Action:         ActionAbort,
			ErrorMessage:   fmt.Sprintf("Invalid agent type: %s. Must be one of: %s", agentType, strings.Join(known, ", ")),
			SectionContent: map[string]string{},
		}
	}

	cleaned := StripCodeBlocks(output)
	res := EvaluationResult{
		SectionContent: ExtractEvaluationSections(output, agentType),
	}
	for _, spec := range specs {
		if spec.header.MatchString(cleaned) {
			res.SectionsFound = append(res.SectionsFound, spec.name)
		} else {
			res.SectionsMissing = append(res.SectionsMissing, spec.name)
		}
	}
	res.Completeness = float64(len(res.SectionsFound)) / float64(len(specs))

	if len(res.SectionsMissing) == 0 {
		res.Valid = true
		res.Action = ActionProceed
		return res
	}

	missing := append([]string(nil), res.SectionsMissing...)
	sort.Strings(missing)
	res.ErrorMessage = fmt.Sprintf("Missing required evaluation sections for %s agent: %s. Found %d/%d sections (completeness: %.0f%%).",
		agentType, strings.Join(missing, ", "), len(res.SectionsFound), len(specs), res.Completeness*100)

	if strict {
		res.Action = ActionRetry
		res.ErrorMessage += "\n\n" + retryGuidance(specs, res.SectionsMissing)
		return res
	}
	res.Action = ActionProceed
	return res
}

func retryGuidance(specs []sectionSpec, missing []string) string {
	lines := []string{"RETRY REQUIRED - Please output the following missing sections:"}
	for _, name := range missing {
		for _, spec := range specs {
			if spec.name == name {
				lines = append(lines, "\n"+spec.guidance)
			}
		}
	}
	return strings.Join(lines, "\n")
}
