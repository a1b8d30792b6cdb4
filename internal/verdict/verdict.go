// Package verdict extracts structured verdicts from free-form validator
// output. Parsing is a layered chain of strategies, first match wins, and
// ambiguous input always degrades to NEEDS_VERIFICATION rather than to an
// approval or a rejection.
package verdict

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Kind is a validator verdict.
type Kind string

const (
	Approved          Kind = "APPROVED"
	Rejected          Kind = "REJECTED"
	NeedsVerification Kind = "NEEDS_VERIFICATION"
	Continue          Kind = "CONTINUE"
)

// ErrUnparseable is the Error text when no strategy produced a verdict.
const ErrUnparseable = "Could not parse structured verdict from validator output"

// RejectedTest names a ledger index the validator rejected.
type RejectedTest struct {
	TestIndex int    `json:"test_index"`
	Reason    string `json:"reason"`
}

// Verdict is the parsed validator result.
type Verdict struct {
	Verdict       Kind           `json:"verdict"`
	RejectedTests []RejectedTest `json:"rejected_tests"`
	Summary       string         `json:"summary"`
	TestsVerified int            `json:"tests_verified"`
	Error         string         `json:"error,omitempty"`
}

// RejectedIndices returns the rejected test indices in order.
func (v Verdict) RejectedIndices() []int {
	out := make([]int, 0, len(v.RejectedTests))
	for _, t := range v.RejectedTests {
		out = append(out, t.TestIndex)
	}
	return out
}

// Reasons maps rejected index to reason.
func (v Verdict) Reasons() map[int]string {
	out := make(map[int]string, len(v.RejectedTests))
	for _, t := range v.RejectedTests {
		out[t.TestIndex] = t.Reason
	}
	return out
}

var (
	fencedBlockPattern = regexp.MustCompile("(?s)```(?:json|JSON)?[ \\t]*\\n(.*?)```")
	verdictKeyPattern  = regexp.MustCompile(`"verdict"\s*:`)
	lineCommentPattern = regexp.MustCompile(`(?m)^\s*//.*$|\s//[^"\n]*$`)
	trailingComma      = regexp.MustCompile(`,\s*([}\]])`)
	approvedWord       = regexp.MustCompile(`(?i)\bAPPROVED\b`)
	rejectedWord       = regexp.MustCompile(`(?i)\bREJECTED\b`)
)

// rawVerdict tolerates loosely typed fields from the model.
type rawVerdict struct {
	Verdict       *string         `json:"verdict"`
	RejectedTests []rawRejected   `json:"rejected_tests"`
	Summary       string          `json:"summary"`
	TestsVerified json.RawMessage `json:"tests_verified"`
}

type rawRejected struct {
	TestIndex json.RawMessage `json:"test_index"`
	Reason    string          `json:"reason"`
}

// ParseValidatorOutput turns validator text into a Verdict. Strategies,
// in order:
//
//  1. a fenced code block holding a JSON object with a "verdict" key
//  2. a bare {"verdict": ...} object anywhere in the text
//  3. the keyword APPROVED present with no REJECTED
//  4. NEEDS_VERIFICATION with Error set
func ParseValidatorOutput(text string) Verdict {
	for _, m := range fencedBlockPattern.FindAllStringSubmatch(text, -1) {
		if v, ok := decode(m[1]); ok {
			return v
		}
	}

	for _, loc := range verdictKeyPattern.FindAllStringIndex(text, -1) {
		if v, ok := decodeEnclosing(text, loc[0]); ok {
			return v
		}
	}

	if approvedWord.MatchString(text) && !rejectedWord.MatchString(text) {
		return Verdict{
			Verdict:       Approved,
			RejectedTests: []RejectedTest{},
			Summary:       "Approved (inferred from keywords; no structured verdict found)",
		}
	}

	return Verdict{
		Verdict:       NeedsVerification,
		RejectedTests: []RejectedTest{},
		Error:         ErrUnparseable,
	}
}

// decode parses one JSON candidate. It reports false when the candidate
// is not an object with a verdict key so the caller can fall through.
func decode(candidate string) (Verdict, bool) {
	candidate = strings.TrimSpace(candidate)
	if !strings.HasPrefix(candidate, "{") {
		return Verdict{}, false
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		cleaned := lineCommentPattern.ReplaceAllString(candidate, "")
		cleaned = trailingComma.ReplaceAllString(cleaned, "$1")
		if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
			return Verdict{}, false
		}
	}
	if raw.Verdict == nil {
		return Verdict{}, false
	}

	v := Verdict{
		Verdict:       Kind(strings.ToUpper(strings.TrimSpace(*raw.Verdict))),
		RejectedTests: []RejectedTest{},
		Summary:       raw.Summary,
		TestsVerified: looseInt(raw.TestsVerified),
	}
	for _, rt := range raw.RejectedTests {
		v.RejectedTests = append(v.RejectedTests, RejectedTest{
			TestIndex: looseInt(rt.TestIndex),
			Reason:    rt.Reason,
		})
	}

	switch v.Verdict {
	case Approved, Rejected, Continue, NeedsVerification:
	default:
		v.Error = fmt.Sprintf("Unknown verdict value: %q", *raw.Verdict)
		v.Verdict = NeedsVerification
	}
	return v, true
}

// decodeEnclosing tries each '{' before keyPos, innermost first, and
// decodes the balanced object that encloses the key.
func decodeEnclosing(text string, keyPos int) (Verdict, bool) {
	for start := strings.LastIndexByte(text[:keyPos], '{'); start >= 0; start = strings.LastIndexByte(text[:start], '{') {
		end := matchBrace(text, start)
		if end < keyPos {
			continue
		}
		if v, ok := decode(text[start : end+1]); ok {
			return v, true
		}
	}
	return Verdict{}, false
}

// matchBrace returns the index of the '}' closing the '{' at start, or -1.
// Braces inside JSON strings are ignored.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// looseInt accepts 3, 3.0 or "3".
func looseInt(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n); err == nil {
			return n
		}
	}
	return 0
}
