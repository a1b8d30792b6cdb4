// Package evaluation scores a feature list against its spec so several
// candidate lists can be compared.
//
// Four criteria are scored in [0,1] and combined with Weights:
// coverage of spec requirements, testability, granularity and
// independence. All scoring is heuristic word and pattern matching; no
// stemming is applied, so "authenticate" and "authentication" are
// different words.
package evaluation

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/claude-agent/internal/ledger"
)

// Weights sets how much each criterion contributes to the aggregate.
type Weights struct {
	Coverage     float64 `json:"coverage"`
	Testability  float64 `json:"testability"`
	Granularity  float64 `json:"granularity"`
	Independence float64 `json:"independence"`
}

// DefaultWeights returns 0.4/0.3/0.2/0.1.
func DefaultWeights() Weights {
	return Weights{Coverage: 0.4, Testability: 0.3, Granularity: 0.2, Independence: 0.1}
}

// Validate checks the weights sum to 1 within 0.01.
func (w Weights) Validate() error {
	total := w.Coverage + w.Testability + w.Granularity + w.Independence
	if math.Abs(total-1) > 0.01 {
		return fmt.Errorf("weights must sum to 1.0, got %g", total)
	}
	return nil
}

// Result holds every criterion score plus the weighted aggregate.
type Result struct {
	Coverage     float64 `json:"coverage_score"`
	Testability  float64 `json:"testability_score"`
	Granularity  float64 `json:"granularity_score"`
	Independence float64 `json:"independence_score"`
	Aggregate    float64 `json:"aggregate_score"`
	FeatureCount int     `json:"feature_count"`
	Weights      Weights `json:"weights"`
	// Uncovered lists requirements no feature matched, truncated.
	Uncovered []string `json:"uncovered,omitempty"`
}

// Evaluate scores features against spec. Invalid weights are rejected.
func Evaluate(features []ledger.Feature, spec string, w Weights, p *Patterns) (*Result, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if p == nil {
		p = DefaultPatterns()
	}

	coverage, uncovered := SpecCoverage(features, spec, p)
	r := &Result{
		Coverage:     coverage,
		Testability:  Testability(features, p),
		Granularity:  Granularity(features),
		Independence: Independence(features),
		FeatureCount: len(features),
		Weights:      w,
		Uncovered:    uncovered,
	}
	r.Aggregate = r.Coverage*w.Coverage +
		r.Testability*w.Testability +
		r.Granularity*w.Granularity +
		r.Independence*w.Independence
	return r, nil
}

// ErrNoFeatureList is returned when the project has no readable
// feature_list.json.
var ErrNoFeatureList = errors.New("feature list not found or unreadable")

// LoadAndEvaluate reads feature_list.json and the spec from a project and
// scores them. The spec comes from specPath when set, otherwise the first
// readable of specs/spec-validated.md, specs/app_spec.txt and
// app_spec.txt. A missing spec scores coverage as zero.
func LoadAndEvaluate(projectDir, specPath string, w Weights) (*Result, error) {
	if !ledger.Exists(projectDir) {
		return nil, ErrNoFeatureList
	}
	features, err := ledger.Load(projectDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFeatureList, err)
	}

	candidates := []string{
		specPath,
		filepath.Join(projectDir, ledger.SpecsDir, ledger.SpecValidatedFile),
		filepath.Join(projectDir, ledger.SpecsDir, ledger.AppSpecFile),
		filepath.Join(projectDir, ledger.AppSpecFile),
	}
	spec := ""
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if data, err := os.ReadFile(path); err == nil {
			spec = string(data)
			break
		}
	}
	return Evaluate(features, spec, w, nil)
}
