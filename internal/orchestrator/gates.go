package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/claude-agent/internal/architecture"
	"github.com/fyrsmithlabs/claude-agent/internal/ledger"
	"github.com/fyrsmithlabs/claude-agent/internal/security"
)

// SessionReport describes a finished session.
type SessionReport struct {
	ProjectDir string
	AgentType  string
	Output     string
	// Before and After are the ledger around the session.
	Before []ledger.Feature
	After  []ledger.Feature
	// LedgerErr is set when the ledger existed but could not be read
	// after the session.
	LedgerErr error
}

// Completed returns the indices that went from failing to passing.
func (r *SessionReport) Completed() []int {
	return r.flipped(false)
}

// Regressed returns the indices that went from passing to failing.
func (r *SessionReport) Regressed() []int {
	return r.flipped(true)
}

func (r *SessionReport) flipped(from bool) []int {
	var out []int
	for i, f := range r.After {
		if i < len(r.Before) && r.Before[i].Passes == from && f.Passes != from {
			out = append(out, i)
		}
	}
	return out
}

func newViolation(t ViolationType, agentType string, sev Severity, format string, args ...any) Violation {
	return Violation{
		Type:        t,
		AgentType:   agentType,
		Description: fmt.Sprintf(format, args...),
		Severity:    sev,
		DetectedAt:  time.Now(),
	}
}

// EvaluationGate checks that the agent wrote its evaluation sections.
type EvaluationGate struct{}

// NewEvaluationGate creates an evaluation section gate.
func NewEvaluationGate() *EvaluationGate {
	return &EvaluationGate{}
}

// Name returns the gate identifier.
func (g *EvaluationGate) Name() string {
	return "evaluation-gate"
}

// Check validates the evaluation sections of agents that have them.
func (g *EvaluationGate) Check(ctx context.Context, r *SessionReport) []Violation {
	if len(security.RequiredSections(r.AgentType)) == 0 {
		return nil
	}
	res := security.ValidateEvaluationSections(r.Output, r.AgentType, false)
	if res.Valid {
		return nil
	}
	return []Violation{newViolation(ViolationEvaluationIncomplete, r.AgentType, SeverityWarning,
		"missing evaluation sections: %s", strings.Join(res.SectionsMissing, ", "))}
}

// RegressionGate reports features a coding session broke.
type RegressionGate struct{}

// NewRegressionGate creates a regression gate.
func NewRegressionGate() *RegressionGate {
	return &RegressionGate{}
}

// Name returns the gate identifier.
func (g *RegressionGate) Name() string {
	return "regression-gate"
}

// Check reports passing features that now fail.
func (g *RegressionGate) Check(ctx context.Context, r *SessionReport) []Violation {
	if r.AgentType != AgentCoding {
		return nil
	}
	regressed := r.Regressed()
	if len(regressed) == 0 {
		return nil
	}
	return []Violation{newViolation(ViolationFeatureRegressed, r.AgentType, SeverityWarning,
		"features regressed: %s", joinInts(regressed))}
}

// BundleGate warns when one session completes several features.
type BundleGate struct {
	maxFeatures int
}

// NewBundleGate creates a gate that allows one feature per session.
func NewBundleGate() *BundleGate {
	return &BundleGate{maxFeatures: 1}
}

// Name returns the gate identifier.
func (g *BundleGate) Name() string {
	return "bundle-gate"
}

// Check counts features completed by a coding session.
func (g *BundleGate) Check(ctx context.Context, r *SessionReport) []Violation {
	if r.AgentType != AgentCoding {
		return nil
	}
	if n := len(r.Completed()); n > g.maxFeatures {
		return []Violation{newViolation(ViolationBundledFeatures, r.AgentType, SeverityWarning,
			"%d features completed in one session; work one feature at a time", n)}
	}
	return nil
}

// ArchitectureGate checks that locked architecture files still load.
type ArchitectureGate struct{}

// NewArchitectureGate creates an architecture gate.
func NewArchitectureGate() *ArchitectureGate {
	return &ArchitectureGate{}
}

// Name returns the gate identifier.
func (g *ArchitectureGate) Name() string {
	return "architecture-gate"
}

// Check validates the architecture files once they are locked.
func (g *ArchitectureGate) Check(ctx context.Context, r *SessionReport) []Violation {
	if r.AgentType == AgentArchitect || !architecture.IsLocked(r.ProjectDir) {
		return nil
	}
	ok, errs := architecture.ValidateFiles(r.ProjectDir)
	if ok {
		return nil
	}
	out := make([]Violation, 0, len(errs))
	for _, e := range errs {
		out = append(out, newViolation(ViolationArchitectureInvalid, r.AgentType, SeverityError, "%s", e))
	}
	return out
}

// LedgerGate reports a ledger the session left unreadable.
type LedgerGate struct{}

// NewLedgerGate creates a ledger gate.
func NewLedgerGate() *LedgerGate {
	return &LedgerGate{}
}

// Name returns the gate identifier.
func (g *LedgerGate) Name() string {
	return "ledger-gate"
}

// Check reports r.LedgerErr. The run goes on treating the ledger as
// empty so the next session can repair it.
func (g *LedgerGate) Check(ctx context.Context, r *SessionReport) []Violation {
	if r.LedgerErr == nil {
		return nil
	}
	return []Violation{newViolation(ViolationLedgerUnreadable, r.AgentType, SeverityError,
		"%s is unreadable: %v", ledger.FeatureListFile, r.LedgerErr)}
}

// DefaultGates returns every gate in check order.
func DefaultGates() []Gate {
	return []Gate{
		NewLedgerGate(),
		NewEvaluationGate(),
		NewRegressionGate(),
		NewBundleGate(),
		NewArchitectureGate(),
	}
}

func countType(vs []Violation, t ViolationType) int {
	n := 0
	for _, v := range vs {
		if v.Type == t {
			n++
		}
	}
	return n
}

func hasCriticalViolation(vs []Violation) bool {
	for _, v := range vs {
		if v.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

func describeViolations(vs []Violation) string {
	descs := make([]string, 0, len(vs))
	for _, v := range vs {
		descs = append(descs, v.Description)
	}
	return strings.Join(descs, "; ")
}

func joinInts(ns []int) string {
	parts := make([]string, 0, len(ns))
	for _, n := range ns {
		parts = append(parts, fmt.Sprint(n))
	}
	return strings.Join(parts, ", ")
}
