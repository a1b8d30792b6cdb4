package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/claude-agent/internal/architecture"
	"github.com/fyrsmithlabs/claude-agent/internal/ledger"
)

func features(passes ...bool) []ledger.Feature {
	out := make([]ledger.Feature, len(passes))
	for i, p := range passes {
		out[i] = ledger.Feature{Description: "f", Passes: p}
	}
	return out
}

func TestSessionReport_Flips(t *testing.T) {
	r := &SessionReport{
		Before: features(false, true, false, true),
		After:  features(true, false, false, true, true),
	}
	assert.Equal(t, []int{0}, r.Completed(), "features added during the session do not count")
	assert.Equal(t, []int{1}, r.Regressed())

	empty := &SessionReport{After: features(true)}
	assert.Empty(t, empty.Completed())
}

func TestGateNames(t *testing.T) {
	names := make([]string, 0)
	for _, g := range DefaultGates() {
		names = append(names, g.Name())
	}
	assert.Equal(t, []string{"ledger-gate", "evaluation-gate", "regression-gate", "bundle-gate", "architecture-gate"}, names)
}

func TestEvaluationGate_Check(t *testing.T) {
	gate := NewEvaluationGate()
	ctx := context.Background()

	complete := "### Step A - CONTEXT VERIFICATION\nx\n### Step B - REGRESSION VERIFICATION\nx\n### Step C - IMPLEMENTATION PLAN\nx\n"
	assert.Empty(t, gate.Check(ctx, &SessionReport{AgentType: AgentCoding, Output: complete}))

	violations := gate.Check(ctx, &SessionReport{AgentType: AgentCoding, Output: "### Step A - CONTEXT VERIFICATION\nx\n"})
	require.Len(t, violations, 1)
	assert.Equal(t, ViolationEvaluationIncomplete, violations[0].Type)
	assert.Equal(t, SeverityWarning, violations[0].Severity)
	assert.Equal(t, "missing evaluation sections: regression, plan", violations[0].Description)

	assert.Empty(t, gate.Check(ctx, &SessionReport{AgentType: AgentReview}), "agents without sections are skipped")
}

func TestRegressionGate_Check(t *testing.T) {
	gate := NewRegressionGate()
	ctx := context.Background()

	r := &SessionReport{AgentType: AgentCoding, Before: features(true, true, true, true), After: features(true, true, false, false)}
	violations := gate.Check(ctx, r)
	require.Len(t, violations, 1)
	assert.Equal(t, ViolationFeatureRegressed, violations[0].Type)
	assert.Equal(t, "features regressed: 2, 3", violations[0].Description)

	r.AgentType = AgentValidator
	assert.Empty(t, gate.Check(ctx, r), "validator rejections are not regressions")
}

func TestBundleGate_Check(t *testing.T) {
	gate := NewBundleGate()
	ctx := context.Background()

	one := &SessionReport{AgentType: AgentCoding, Before: features(false, false), After: features(true, false)}
	assert.Empty(t, gate.Check(ctx, one))

	two := &SessionReport{AgentType: AgentCoding, Before: features(false, false), After: features(true, true)}
	violations := gate.Check(ctx, two)
	require.Len(t, violations, 1)
	assert.Equal(t, ViolationBundledFeatures, violations[0].Type)
	assert.Contains(t, violations[0].Description, "2 features completed")

	two.AgentType = AgentInitializer
	assert.Empty(t, gate.Check(ctx, two))
}

func TestArchitectureGate_Check(t *testing.T) {
	gate := NewArchitectureGate()
	ctx := context.Background()
	dir := t.TempDir()

	assert.Empty(t, gate.Check(ctx, &SessionReport{ProjectDir: dir, AgentType: AgentCoding}), "unlocked projects are skipped")

	writeArchitecture(t, dir, map[string]string{
		architecture.ContractsFile: "contracts:\n  - endpoints: []\n",
		architecture.SchemasFile:   validSchemas,
		architecture.DecisionsFile: validDecisions,
	})
	violations := gate.Check(ctx, &SessionReport{ProjectDir: dir, AgentType: AgentCoding})
	require.Len(t, violations, 1)
	assert.Equal(t, ViolationArchitectureInvalid, violations[0].Type)
	assert.Equal(t, SeverityError, violations[0].Severity)
	assert.Contains(t, violations[0].Description, "name")

	assert.Empty(t, gate.Check(ctx, &SessionReport{ProjectDir: dir, AgentType: AgentArchitect}))
}

func TestLedgerGate_Check(t *testing.T) {
	gate := NewLedgerGate()
	ctx := context.Background()

	assert.Empty(t, gate.Check(ctx, &SessionReport{}))

	violations := gate.Check(ctx, &SessionReport{AgentType: AgentCoding, LedgerErr: errors.New("unexpected EOF")})
	require.Len(t, violations, 1)
	assert.Equal(t, SeverityError, violations[0].Severity)
	assert.Equal(t, "feature_list.json is unreadable: unexpected EOF", violations[0].Description)
	assert.False(t, hasCriticalViolation(violations))
}

func TestViolationHelpers(t *testing.T) {
	vs := []Violation{
		newViolation(ViolationArchitectureInvalid, AgentCoding, SeverityError, "a"),
		newViolation(ViolationArchitectureInvalid, AgentCoding, SeverityError, "b"),
		newViolation(ViolationBundledFeatures, AgentCoding, SeverityWarning, "c %d", 3),
	}
	assert.Equal(t, 2, countType(vs, ViolationArchitectureInvalid))
	assert.Equal(t, "a; b; c 3", describeViolations(vs))
	assert.False(t, hasCriticalViolation(vs))
	assert.False(t, vs[0].DetectedAt.IsZero())
	assert.Equal(t, "", joinInts(nil))
}
