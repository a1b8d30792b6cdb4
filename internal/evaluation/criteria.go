// internal/evaluation/criteria.go
package evaluation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/claude-agent/internal/ledger"
)

// Patterns configures requirement extraction and testability scoring.
type Patterns struct {
	// Requirements match sentences that state a requirement.
	Requirements []*regexp.Regexp
	// Overlap threshold is min(MaxOverlap, max(MinOverlap, words*OverlapFactor)).
	OverlapFactor float64
	MinOverlap    int
	MaxOverlap    int
	// ConcreteStepsRatio is the share of steps that must name an action.
	ConcreteStepsRatio float64
	VerifiableWords    []string
	ActionVerbs        []string
}

var defaultRequirementPatterns = []string{
	`(?:must|should|shall|will)\s+\w+`,
	`(?:must|should|shall|will)\s+not\s+\w+`,
	`(?:user|system|app|application)\s+(?:can|should|must|will)`,
	`(?:user|system|app|application)\s+(?:cannot|can't|should\s+not|must\s+not)`,
	`(?:allow|enable|support|provide|display|show|create|update|delete)`,
	`(?:allows|enables|supports|provides|displays|shows|creates|updates|deletes)`,
	`(?:allowing|enabling|supporting|providing|displaying|showing|creating|updating|deleting)`,
	`(?:prevent|prohibit|restrict|block|disable|hide|remove)`,
	`(?:prevents|prohibits|restricts|blocks|disables|hides|removes)`,
}

var compiledDefaults = compileAll(defaultRequirementPatterns)

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// DefaultPatterns returns the stock requirement patterns and thresholds.
func DefaultPatterns() *Patterns {
	return &Patterns{
		Requirements:       compiledDefaults,
		OverlapFactor:      0.5,
		MinOverlap:         2,
		MaxOverlap:         3,
		ConcreteStepsRatio: 0.5,
		VerifiableWords: []string{
			"should", "displays", "shows", "appears", "returns",
			"contains", "equals", "matches", "visible", "enabled",
		},
		ActionVerbs: []string{
			"click", "type", "enter", "select", "navigate",
			"verify", "check", "confirm", "submit", "open",
		},
	}
}

const (
	requirementMaxLen   = 100
	requirementMinLen   = 10
	uncoveredDisplayLen = 80

	testabilityHasSteps      = 0.3
	testabilityConcreteSteps = 0.3
	testabilityExpected      = 0.4
	testabilityDescription   = 0.2

	compoundPenalty  = 0.2
	compoundMaxCount = 3
)

var stopWords = map[string]bool{
	"must": true, "should": true, "shall": true, "will": true, "can": true, "may": true,
	"be": true, "is": true, "are": true, "was": true, "were": true, "been": true,
	"the": true, "a": true, "an": true,
	"to": true, "of": true, "and": true, "or": true, "in": true, "on": true, "for": true, "with": true, "by": true,
	"that": true, "this": true, "it": true, "they": true, "them": true, "their": true,
	"able": true, "not": true,
}

var (
	sentenceSplit  = regexp.MustCompile(`[.!?]\s+`)
	headerLine     = regexp.MustCompile(`(?m)^#+\s+(.+)$`)
	wordPattern    = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	featureRef     = regexp.MustCompile(`(?i)feature\s*#?\d+`)
	sequentialHint = []string{"after", "before", "then", "following", "once", "requires", "depends on", "prerequisite"}
)

func contentWords(s string) map[string]bool {
	words := map[string]bool{}
	for _, w := range wordPattern.FindAllString(strings.ToLower(s), -1) {
		if !stopWords[w] {
			words[w] = true
		}
	}
	return words
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// requirements extracts normalized requirement sentences from spec,
// falling back to markdown headers when no sentence matches.
func requirements(spec string, p *Patterns) []string {
	seen := map[string]bool{}
	var reqs []string
	add := func(r string) {
		if !seen[r] {
			seen[r] = true
			reqs = append(reqs, r)
		}
	}

	for _, sentence := range sentenceSplit.Split(spec, -1) {
		for _, re := range p.Requirements {
			if re.MatchString(sentence) {
				normalized := truncateRunes(strings.ToLower(strings.TrimSpace(sentence)), requirementMaxLen)
				if utf8.RuneCountInString(normalized) > requirementMinLen {
					add(normalized)
				}
				break
			}
		}
	}
	if len(reqs) > 0 {
		return reqs
	}
	for _, m := range headerLine.FindAllStringSubmatch(spec, -1) {
		if utf8.RuneCountInString(m[1]) > 5 {
			add(strings.ToLower(m[1]))
		}
	}
	return reqs
}

// SpecCoverage returns the fraction of spec requirements that share
// enough content words with some feature description, plus the
// requirements left uncovered. With no requirements to extract the
// score is 0.5.
func SpecCoverage(features []ledger.Feature, spec string, p *Patterns) (float64, []string) {
	if len(features) == 0 || spec == "" {
		return 0, nil
	}
	reqs := requirements(spec, p)
	if len(reqs) == 0 {
		return 0.5, nil
	}

	featureWords := make([]map[string]bool, len(features))
	for i, f := range features {
		featureWords[i] = contentWords(f.Description)
	}

	covered := 0
	var uncovered []string
	for _, req := range reqs {
		words := contentWords(req)
		threshold := min(p.MaxOverlap, max(p.MinOverlap, int(float64(len(words))*p.OverlapFactor)))

		hit := false
		for _, fw := range featureWords {
			overlap := 0
			for w := range words {
				if fw[w] {
					overlap++
				}
			}
			if overlap >= threshold {
				hit = true
				break
			}
		}
		if hit {
			covered++
		} else {
			uncovered = append(uncovered, truncateRunes(req, uncoveredDisplayLen))
		}
	}
	return float64(covered) / float64(len(reqs)), uncovered
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Testability averages per-feature scores for having steps, having
// concrete steps, and describing a verifiable outcome.
func Testability(features []ledger.Feature, p *Patterns) float64 {
	if len(features) == 0 {
		return 0
	}
	total := 0.0
	for _, f := range features {
		score := 0.0
		if len(f.TestSteps) > 0 {
			score += testabilityHasSteps
			concrete := 0
			for _, step := range f.TestSteps {
				if containsAny(strings.ToLower(step), p.ActionVerbs) {
					concrete++
				}
			}
			if float64(concrete)/float64(len(f.TestSteps)) >= p.ConcreteStepsRatio {
				score += testabilityConcreteSteps
			}
		}

		switch {
		case f.ExpectedResult != "" && containsAny(strings.ToLower(f.ExpectedResult), p.VerifiableWords):
			score += testabilityExpected
		case f.Description != "" && containsAny(strings.ToLower(f.Description), p.VerifiableWords):
			score += testabilityDescription
		}
		total += score
	}
	return total / float64(len(features))
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}

// Granularity averages how well each feature is sized: descriptions of
// 100-300 characters with 3-7 steps score best; very short or long ones
// and compound descriptions lose points.
func Granularity(features []ledger.Feature) float64 {
	if len(features) == 0 {
		return 0
	}
	total := 0.0
	for _, f := range features {
		descLen := utf8.RuneCountInString(f.Description)
		steps := len(f.TestSteps)
		score := 1.0

		if descLen < 50 {
			score -= 0.3
		}
		if steps < 2 {
			score -= 0.2
		}
		if descLen > 500 {
			score -= 0.3
		}
		if steps > 10 {
			score -= 0.2
		}
		if ands := strings.Count(strings.ToLower(f.Description), " and "); ands >= 2 {
			score -= compoundPenalty * float64(min(ands, compoundMaxCount))
		}
		if descLen >= 100 && descLen <= 300 && steps >= 3 && steps <= 7 {
			score += 0.1
		}
		total += clamp01(score)
	}
	return total / float64(len(features))
}

// Independence averages how self-contained each feature is. Declared
// dependencies, sequencing words and references to other features each
// cost points.
func Independence(features []ledger.Feature) float64 {
	if len(features) == 0 {
		return 0
	}
	total := 0.0
	for _, f := range features {
		score := 1.0
		if n := len(f.Dependencies); n > 0 {
			score -= 0.1 * float64(min(n, 5))
		}

		text := strings.ToLower(f.Description + " " + strings.Join(f.TestSteps, " "))
		for _, w := range sequentialHint {
			if strings.Contains(text, w) {
				score -= 0.1
			}
		}
		score -= 0.1 * float64(len(featureRef.FindAllString(text, -1)))
		total += clamp01(score)
	}
	return total / float64(len(features))
}
