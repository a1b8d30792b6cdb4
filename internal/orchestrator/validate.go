package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/claude-agent/internal/gitinfo"
	"github.com/fyrsmithlabs/claude-agent/internal/ledger"
	"github.com/fyrsmithlabs/claude-agent/internal/metrics"
	"github.com/fyrsmithlabs/claude-agent/internal/progress"
	"github.com/fyrsmithlabs/claude-agent/internal/prompts"
	"github.com/fyrsmithlabs/claude-agent/internal/session"
	"github.com/fyrsmithlabs/claude-agent/internal/verdict"
)

// maxCommitsPerEntry bounds the commits listed in one progress entry.
const maxCommitsPerEntry = 20

// validate takes the validation path. done is false only after a
// rejection or a failed validator session, which resume coding.
func (o *Orchestrator) validate(ctx context.Context, counts ledger.TestCounts) (outcome Outcome, done bool, err error) {
	dir := o.opts.ProjectDir

	if !o.opts.ValidatorEnabled {
		fmt.Fprintln(o.out, "\nAll automated tests passing. Validator disabled, stopping.")
		return OutcomeComplete, true, nil
	}
	if counts.AllPassing() && ledger.LastApproved(dir) {
		fmt.Fprintln(o.out, "\nProject already approved by the validator.")
		return OutcomeComplete, true, nil
	}

	rejections := ledger.RejectionCount(dir)
	if rejections >= o.opts.MaxRejections {
		o.logger.Warn(ctx, "max rejections reached", zap.Int("rejections", rejections))
		o.banner(
			fmt.Sprintf("Max rejections reached (%d).", o.opts.MaxRejections),
			"Manual review recommended. See validation-history.json for details.",
		)
		return OutcomeMaxRejections, true, nil
	}

	prompt, err := prompts.Render(prompts.Validator, o.promptData())
	if err != nil {
		return OutcomeError, true, err
	}
	attempt := len(ledger.LoadHistory(dir)) + 1
	start := time.Now()

	for {
		o.sessionHeader(AgentValidator)
		if counts.AllPassing() {
			fmt.Fprintln(o.out, "All tests passing. Running validator...")
		} else {
			fmt.Fprintf(o.out, "All automated tests passing, %d manual tests remain. Running validator...\n", counts.ManualTotal-counts.ManualPassing)
		}

		before, _ := ledger.Load(dir)
		run, err := o.runSession(ctx, session.Request{
			Prompt:    prompt,
			Model:     o.opts.ValidatorModel,
			MaxTurns:  o.opts.ValidatorMaxTurns,
			AgentType: AgentValidator,
			Validator: true,
		})
		if err != nil {
			return OutcomeError, true, err
		}
		o.events.ValidationStart(run.ctx, attempt)

		if run.res.Status == session.StatusError {
			o.finish(run)
			fmt.Fprintf(o.out, "\nValidator session error: %s\n", run.res.Text)
			fmt.Fprintln(o.out, "Will retry with a fresh session...")
			return o.pauseOrStop(ctx)
		}

		v := verdict.ParseValidatorOutput(run.res.Text)
		o.events.ValidationResult(run.ctx, string(v.Verdict), len(v.RejectedTests), v.Summary)
		violations := o.checkGates(run.ctx, o.newReport(AgentValidator, run.res.Text, before))
		o.finish(run)
		if hasCriticalViolation(violations) {
			return OutcomeError, true, fmt.Errorf("critical violation after validator session: %s", describeViolations(violations))
		}

		switch v.Verdict {
		case verdict.Continue:
			fmt.Fprintln(o.out, "Validator needs more time, continuing...")
			if !o.nextIteration() {
				return o.maxIterations(), true, nil
			}
			if err := o.pause(ctx); err != nil {
				return OutcomeError, true, err
			}
			continue

		case verdict.Approved:
			o.approve(run.ctx, v, counts, start)
			return OutcomeComplete, true, nil

		case verdict.Rejected:
			o.reject(run.ctx, v, counts, start, rejections+1)
			return o.pauseOrStop(ctx)

		default:
			o.logger.Warn(run.ctx, "validator could not reach a verdict", zap.String("error", v.Error))
			o.banner(
				"VALIDATOR NEEDS MANUAL VERIFICATION",
				v.Summary,
			)
			if v.Error != "" {
				fmt.Fprintf(o.out, "Parse error: %s\n", v.Error)
			}
			return OutcomeNeedsVerification, true, nil
		}
	}
}

func (o *Orchestrator) approve(ctx context.Context, v verdict.Verdict, counts ledger.TestCounts, start time.Time) {
	dir := o.opts.ProjectDir
	o.banner("VALIDATOR APPROVED", v.Summary)
	if err := ledger.SaveAttempt(dir, ledger.ResultApproved, nil, v.Summary); err != nil {
		o.logger.Error(ctx, "failed to save validation attempt", zap.Error(err))
	}
	o.recordValidation(ctx, metrics.VerdictApproved, v, counts, nil)
	o.appendValidationEntry(ctx, start, nil, []string{"Project approved by validator"})
}

func (o *Orchestrator) reject(ctx context.Context, v verdict.Verdict, counts ledger.TestCounts, start time.Time, rejections int) {
	dir := o.opts.ProjectDir
	indices := v.RejectedIndices()
	reasons := v.Reasons()

	o.banner(fmt.Sprintf("VALIDATOR REJECTED (%d/%d)", rejections, o.opts.MaxRejections), v.Summary)
	updated, errs := ledger.MarkTestsFailed(dir, indices, reasons)
	for _, e := range errs {
		o.logger.Warn(ctx, "could not mark test failed", zap.String("error", e))
		fmt.Fprintf(o.out, "Warning: %s\n", e)
	}
	fmt.Fprintf(o.out, "Marked %d tests as failing. Resuming coding.\n", updated)

	lines := make([]string, 0, len(indices))
	for _, i := range sortedKeys(reasons) {
		o.events.FeatureFailed(ctx, i, reasons[i])
		lines = append(lines, fmt.Sprintf("Feature #%d: %s", i, reasons[i]))
	}

	if err := ledger.SaveAttempt(dir, ledger.ResultRejected, indices, v.Summary); err != nil {
		o.logger.Error(ctx, "failed to save validation attempt", zap.Error(err))
	}
	o.recordValidation(ctx, metrics.VerdictRejected, v, counts, lines)
	o.appendValidationEntry(ctx, start, lines, []string{"Fix rejected features before re-validation"})
}

func (o *Orchestrator) recordValidation(ctx context.Context, kind string, v verdict.Verdict, counts ledger.TestCounts, reasons []string) {
	tested := v.TestsVerified
	if tested == 0 {
		tested = counts.Total
	}
	if err := o.metrics.RecordValidation(ctx, kind, tested, len(v.RejectedTests), reasons); err != nil {
		o.logger.Warn(ctx, "failed to record validation metrics", zap.Error(err))
	}
}

// appendValidationEntry writes a validation session to the progress notes
// with the commits made since start.
func (o *Orchestrator) appendValidationEntry(ctx context.Context, start time.Time, issues, next []string) {
	dir := o.opts.ProjectDir
	passing, total := ledger.CountPassing(dir)
	entry := progress.Entry{
		Timestamp:           time.Now().UTC().Format(time.RFC3339),
		Status:              progress.NewStatus(passing, total),
		IssuesFound:         issues,
		NextSteps:           next,
		IsValidationSession: true,
	}
	if commits, err := gitinfo.CommitsSince(dir, sinceStart(start), maxCommitsPerEntry); err == nil {
		entry.GitCommits = gitinfo.Summaries(commits)
		entry.FilesModified = gitinfo.FilesChanged(commits)
	}
	if err := progress.Append(dir, entry); err != nil {
		o.logger.Warn(ctx, "failed to append progress notes", zap.Error(err))
	}
}

func sortedKeys(m map[int]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
