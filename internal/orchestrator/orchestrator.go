package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/claude-agent/internal/architecture"
	"github.com/fyrsmithlabs/claude-agent/internal/clierr"
	"github.com/fyrsmithlabs/claude-agent/internal/detection"
	"github.com/fyrsmithlabs/claude-agent/internal/fileutil"
	"github.com/fyrsmithlabs/claude-agent/internal/ledger"
	"github.com/fyrsmithlabs/claude-agent/internal/logging"
	"github.com/fyrsmithlabs/claude-agent/internal/metrics"
	"github.com/fyrsmithlabs/claude-agent/internal/progress"
	"github.com/fyrsmithlabs/claude-agent/internal/prompts"
	"github.com/fyrsmithlabs/claude-agent/internal/session"
	"github.com/fyrsmithlabs/claude-agent/internal/telemetry"
)

// ReviewFile is written by the spec review session.
const ReviewFile = "spec-review.md"

// Deps are the collaborators of an Orchestrator. Only Runner is required.
type Deps struct {
	Runner  session.Runner
	Logger  *logging.Logger
	Events  *logging.EventLogger
	Metrics *metrics.Store
	// Out receives banners and progress summaries.
	Out io.Writer
	// Confirm asks the user a yes/no question. Nil answers every
	// question with its default.
	Confirm func(question string, defaultYes bool) bool
	// Gates run after every session. Nil selects DefaultGates.
	Gates []Gate
	// Telemetry receives a span per session. Nil uses the global providers.
	Telemetry *telemetry.Telemetry
}

// Orchestrator drives agent sessions for one project.
type Orchestrator struct {
	opts    Options
	runner  session.Runner
	logger  *logging.Logger
	events  *logging.EventLogger
	metrics *metrics.Store
	out     io.Writer
	confirm func(string, bool) bool
	gates   []Gate
	limiter *rate.Limiter
	ins     *instruments

	iteration     int
	specContent   string
	archAttempted bool
}

// New creates an orchestrator.
func New(opts Options, deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Events == nil {
		deps.Events = logging.NewEventLogger(deps.Logger, nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewStore(opts.ProjectDir, "", metrics.DefaultTuning(), deps.Logger)
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	if deps.Gates == nil {
		deps.Gates = DefaultGates()
	}
	if opts.Stack == "" {
		opts.Stack = detection.DetectStack(opts.ProjectDir)
	}
	if opts.MaxRejections < 1 {
		opts.MaxRejections = 1
	}

	limit := rate.Inf
	if opts.AutoContinueDelay > 0 {
		limit = rate.Every(opts.AutoContinueDelay)
	}
	return &Orchestrator{
		opts:    opts,
		runner:  deps.Runner,
		logger:  deps.Logger,
		events:  deps.Events,
		metrics: deps.Metrics,
		out:     deps.Out,
		confirm: deps.Confirm,
		gates:   deps.Gates,
		limiter: rate.NewLimiter(limit, 1),
		ins:     newInstruments(deps.Telemetry),
	}
}

// Iteration returns the number of loop iterations started so far.
func (o *Orchestrator) Iteration() int {
	return o.iteration
}

// Run drives coding and validation sessions until a terminal outcome.
// The error is non-nil only with OutcomeError.
func (o *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	outcome, err := o.run(ctx)
	o.logger.Info(ctx, "run finished",
		zap.Stringer("outcome", outcome),
		zap.Int("iterations", o.iteration),
		zap.Error(err),
	)
	if err == nil {
		o.printSummary(outcome)
	}
	return outcome, err
}

func (o *Orchestrator) run(ctx context.Context) (Outcome, error) {
	dir := o.opts.ProjectDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return OutcomeError, fmt.Errorf("create project dir: %w", err)
	}

	if !ledger.Exists(dir) {
		proceed, err := o.prepareFirstRun(ctx)
		if err != nil {
			return OutcomeError, err
		}
		if !proceed {
			return OutcomeAborted, nil
		}
	} else {
		fmt.Fprintln(o.out, "Continuing existing project")
		o.printProgress()
	}

	for {
		if !o.nextIteration() {
			return o.maxIterations(), nil
		}

		counts := ledger.CountByType(dir)
		var (
			outcome Outcome
			done    bool
			err     error
		)
		if counts.AllPassing() || counts.AutomatedComplete() {
			outcome, done, err = o.validate(ctx, counts)
		} else {
			outcome, done, err = o.code(ctx)
		}
		if err != nil {
			return OutcomeError, err
		}
		if done {
			return outcome, nil
		}
	}
}

// nextIteration starts an iteration and reports whether the limit allows
// it.
func (o *Orchestrator) nextIteration() bool {
	o.iteration++
	return o.opts.MaxIterations <= 0 || o.iteration <= o.opts.MaxIterations
}

func (o *Orchestrator) maxIterations() Outcome {
	fmt.Fprintf(o.out, "\nReached max iterations (%d)\n", o.opts.MaxIterations)
	fmt.Fprintln(o.out, "To continue, run the command again without --max-iterations")
	return OutcomeMaxIterations
}

// prepareFirstRun copies the spec into the project and runs the optional
// review. It reports false when the user declined to continue.
func (o *Orchestrator) prepareFirstRun(ctx context.Context) (bool, error) {
	dir := o.opts.ProjectDir
	content, source := o.opts.SpecContent, o.opts.SpecPath
	if !fileutil.Exists(source) {
		source = ""
	}
	if content == "" {
		existing := ledger.FindSpecForCoding(dir)
		if existing == "" {
			return false, clierr.MissingOption("--spec or --goal",
				"claude-agent --goal 'Build a todo app with React'",
				"No spec file or goal provided, and the project has no spec.", "")
		}
		data, err := os.ReadFile(existing)
		if err != nil {
			return false, fmt.Errorf("read spec: %w", err)
		}
		fmt.Fprintf(o.out, "Found existing spec: %s\n", existing)
		content, source = string(data), existing
	}
	if _, err := ledger.WriteSpecToProject(dir, source, content); err != nil {
		return false, err
	}
	o.specContent = content

	if o.opts.Review {
		proceed, err := o.review(ctx, content)
		if err != nil || !proceed {
			return false, err
		}
		o.banner("Proceeding with feature generation...")
	}

	fmt.Fprintln(o.out, "Fresh start - will use initializer agent")
	o.banner(
		"NOTE: First session may take 10-20+ minutes!",
		fmt.Sprintf("The agent is generating %d detailed test cases.", o.opts.Features),
		"This may appear to hang - it's working. Watch for [Tool: ...] output.",
	)
	return true, nil
}

// review runs the spec review session and asks whether to continue.
func (o *Orchestrator) review(ctx context.Context, spec string) (bool, error) {
	o.banner("SPEC REVIEW MODE")
	prompt, err := prompts.Render(prompts.Review, prompts.Data{SpecContent: spec})
	if err != nil {
		return false, err
	}
	run, err := o.runSession(ctx, session.Request{
		Prompt:    prompt,
		Model:     o.opts.Model,
		MaxTurns:  o.opts.MaxTurns,
		AgentType: AgentReview,
	})
	if err != nil {
		return false, err
	}
	o.finish(run)

	reviewPath := filepath.Join(o.opts.ProjectDir, ReviewFile)
	if fileutil.Exists(reviewPath) {
		o.banner("REVIEW COMPLETE")
		fmt.Fprintf(o.out, "Review saved to: %s\n", reviewPath)
		if !o.ask("Proceed with feature generation?", true) {
			fmt.Fprintln(o.out, "Aborting. Refine your spec and run again.")
			fmt.Fprintf(o.out, "Review file preserved at: %s\n", reviewPath)
			return false, nil
		}
		return true, nil
	}
	fmt.Fprintln(o.out, "Warning: Review file was not created.")
	return o.ask("Proceed anyway?", false), nil
}

func (o *Orchestrator) ask(question string, defaultYes bool) bool {
	if o.confirm == nil {
		return defaultYes
	}
	return o.confirm(question, defaultYes)
}

// code runs one initializer or coding session. done is true when the run
// must stop.
func (o *Orchestrator) code(ctx context.Context) (outcome Outcome, done bool, err error) {
	dir := o.opts.ProjectDir
	agent := AgentCoding
	if !ledger.Exists(dir) {
		agent = AgentInitializer
	}

	if agent == AgentCoding && o.needsArchitecture() {
		if err := o.lockArchitecture(ctx); err != nil {
			return OutcomeError, true, err
		}
	}

	name := prompts.Coding
	if agent == AgentInitializer {
		name = prompts.Initializer
	}
	prompt, err := prompts.Render(name, o.promptData())
	if err != nil {
		return OutcomeError, true, err
	}

	before, _ := ledger.Load(dir)
	sessionNumber := progress.NextSessionID(dir)
	o.sessionHeader(agent)

	run, err := o.runSession(ctx, session.Request{
		Prompt:    prompt,
		Model:     o.opts.Model,
		MaxTurns:  o.opts.MaxTurns,
		AgentType: agent,
	})
	if err != nil {
		return OutcomeError, true, err
	}
	defer o.finish(run)

	if run.res.Status == session.StatusError {
		fmt.Fprintf(o.out, "\nSession encountered an error: %s\n", run.res.Text)
		fmt.Fprintln(o.out, "Will retry with a fresh session...")
		return o.pauseOrStop(ctx)
	}

	report := o.newReport(agent, run.res.Text, before)
	violations := o.checkGates(run.ctx, report)
	o.recordCoding(run, report, sessionNumber, violations)
	if hasCriticalViolation(violations) {
		return OutcomeError, true, fmt.Errorf("critical violation after %s session: %s", agent, describeViolations(violations))
	}

	o.printProgress()
	return o.pauseOrStop(ctx)
}

func (o *Orchestrator) newReport(agent, output string, before []ledger.Feature) *SessionReport {
	r := &SessionReport{
		ProjectDir: o.opts.ProjectDir,
		AgentType:  agent,
		Output:     output,
		Before:     before,
	}
	if ledger.Exists(o.opts.ProjectDir) {
		r.After, r.LedgerErr = ledger.Load(o.opts.ProjectDir)
	}
	return r
}

// checkGates runs every gate and logs what they find.
func (o *Orchestrator) checkGates(ctx context.Context, r *SessionReport) []Violation {
	var all []Violation
	for _, g := range o.gates {
		for _, v := range g.Check(ctx, r) {
			fields := []zap.Field{
				zap.String("gate", g.Name()),
				zap.String("violation", string(v.Type)),
				zap.String("description", v.Description),
			}
			if v.Severity == SeverityWarning {
				o.logger.Warn(ctx, "session gate violation", fields...)
			} else {
				o.logger.Error(ctx, "session gate violation", fields...)
			}
			fmt.Fprintf(o.out, "[%s] %s\n", v.Severity, v.Description)
			all = append(all, v)
		}
	}
	return all
}

// recordCoding logs feature flips and appends session metrics for
// coding sessions.
func (o *Orchestrator) recordCoding(run *sessionRun, r *SessionReport, sessionNumber int, violations []Violation) {
	completed := r.Completed()
	regressed := r.Regressed()
	for _, i := range completed {
		o.events.FeatureComplete(run.ctx, i, r.After[i].Description)
		if run.stats != nil {
			run.stats.RecordFeatureComplete(i)
		}
	}
	for _, i := range regressed {
		o.events.FeatureFailed(run.ctx, i, "regressed during coding session")
		if run.stats != nil {
			run.stats.RecordFeatureFailed(i)
		}
	}
	if r.AgentType != AgentCoding {
		return
	}

	sections, _ := metrics.ParseEvaluationSections(r.Output)
	caught, _ := metrics.CountRegressions(r.Output)
	rec := metrics.SessionRecord{
		SessionID:                   sessionNumber,
		FeaturesAttempted:           max(1, len(completed)),
		FeaturesCompleted:           len(completed),
		FeaturesRegressed:           len(regressed),
		RegressionsCaught:           caught,
		ArchitectureDeviations:      countType(violations, ViolationArchitectureInvalid),
		EvaluationSectionsPresent:   sections,
		EvaluationCompletenessScore: metrics.EvaluationCompleteness(sections),
		IsMultiFeature:              len(completed) > 1,
	}
	if err := o.metrics.RecordSession(run.ctx, rec); err != nil {
		o.logger.Warn(run.ctx, "failed to record session metrics", zap.Error(err))
	}
}

func (o *Orchestrator) needsArchitecture() bool {
	return o.opts.ArchitectureEnabled && !o.archAttempted &&
		ledger.CountByType(o.opts.ProjectDir).Total > 0 &&
		!architecture.IsLocked(o.opts.ProjectDir)
}

// lockArchitecture runs the architect session once. A failed lock is
// cleaned up; it stops the run only when the lock is required.
func (o *Orchestrator) lockArchitecture(ctx context.Context) error {
	o.archAttempted = true
	dir := o.opts.ProjectDir
	o.banner("ARCHITECTURE LOCK PHASE")

	prompt, err := prompts.Render(prompts.Architect, o.promptData())
	if err != nil {
		return err
	}
	run, err := o.runSession(ctx, session.Request{
		Prompt:    prompt,
		Model:     o.opts.Model,
		MaxTurns:  o.opts.MaxTurns,
		AgentType: AgentArchitect,
	})
	if err != nil {
		return err
	}
	defer o.finish(run)

	var failure string
	if run.res.Status == session.StatusError {
		failure = run.res.Text
	} else if ok, errs := architecture.ValidateFiles(dir); !ok {
		failure = strings.Join(errs, "; ")
	}
	if failure == "" {
		o.logger.Info(run.ctx, "architecture locked")
		fmt.Fprintln(o.out, "Architecture locked.")
		return nil
	}

	removed, cerr := architecture.CleanupPartial(dir)
	if cerr != nil {
		o.logger.Warn(run.ctx, "failed to clean up partial architecture", zap.Error(cerr))
	} else if removed {
		fmt.Fprintln(o.out, "Removed partial architecture/ directory.")
	}
	if o.opts.ArchitectureRequired {
		return fmt.Errorf("architecture lock failed: %s", failure)
	}
	o.logger.Warn(run.ctx, "architecture lock failed, continuing without it", zap.String("reason", failure))
	fmt.Fprintf(o.out, "Architecture lock failed, continuing without it: %s\n", failure)
	return nil
}

// promptData collects the values coding-side prompts reference.
func (o *Orchestrator) promptData() prompts.Data {
	dir := o.opts.ProjectDir
	initCmd, devCmd := detection.ProjectCommands(dir, o.opts.Stack)
	data := prompts.Data{
		SpecContent:  o.specContent,
		FeatureCount: o.opts.Features,
		InitCommand:  initCmd,
		DevCommand:   devCmd,
	}
	if spec := ledger.FindSpecForCoding(dir); spec != "" {
		if rel, err := filepath.Rel(dir, spec); err == nil {
			data.SpecPath = filepath.ToSlash(rel)
		}
	}
	if architecture.IsLocked(dir) {
		if decisions, err := architecture.LoadDecisions(dir); err == nil {
			data.Decisions = decisions
		} else {
			o.logger.Warn(context.Background(), "failed to load decisions", zap.Error(err))
		}
	}
	return data
}

// sessionRun is a session in flight: its logging context and stats.
type sessionRun struct {
	ctx   context.Context
	req   session.Request
	res   session.Result
	stats *logging.StatsTracker
	span  trace.Span
}

// runSession starts a logged session and runs it to completion. The
// caller must pass the result to finish.
func (o *Orchestrator) runSession(ctx context.Context, req session.Request) (*sessionRun, error) {
	req.ProjectDir = o.opts.ProjectDir
	req.Timeout = o.opts.SessionTimeout

	ctx, span := o.ins.startSpan(ctx, req, o.iteration)
	ctx = logging.WithAgentType(ctx, req.AgentType)
	ctx = logging.WithIteration(ctx, o.iteration)
	id := o.events.StartSession(ctx, req.AgentType, o.iteration, req.Model)
	ctx = logging.WithSessionID(ctx, id)
	span.SetAttributes(attribute.String("session.id", id))

	run := &sessionRun{ctx: ctx, req: req, span: span}
	if cfg := o.logger.Config(); cfg != nil && cfg.Enabled {
		run.stats = logging.NewStatsTracker(cfg.Dir, id, req.AgentType)
	}
	req.Observer = session.NewEventLog(o.events, run.stats)

	res, err := o.runner.Run(ctx, req)
	run.res = res
	if err != nil {
		run.res.Status = session.StatusError
		o.finish(run)
		return nil, err
	}
	return run, nil
}

// finish closes the session in the log and saves its stats.
func (o *Orchestrator) finish(run *sessionRun) {
	if run.res.Status == session.StatusError {
		o.events.Error(run.ctx, run.req.AgentType+" session failed", errors.New(run.res.Text))
		if run.stats != nil {
			run.stats.RecordError()
		}
	}
	o.events.EndSession(run.ctx, string(run.res.Status), run.res.Turns, run.res.Duration)
	o.ins.endSpan(run.ctx, run.span, run.req, run.res)
	if run.stats != nil {
		if err := run.stats.Save(); err != nil {
			o.logger.Warn(run.ctx, "failed to save session stats", zap.Error(err))
		}
	}
}

func (o *Orchestrator) pauseOrStop(ctx context.Context) (Outcome, bool, error) {
	if err := o.pause(ctx); err != nil {
		return OutcomeError, true, err
	}
	return OutcomeComplete, false, nil
}

// pause waits one auto-continue delay. The limiter refills one token per
// delay; spending the token makes Wait block for a full interval.
func (o *Orchestrator) pause(ctx context.Context) error {
	if o.limiter.Limit() == rate.Inf {
		return ctx.Err()
	}
	fmt.Fprintf(o.out, "\nAgent will auto-continue in %s...\n", o.opts.AutoContinueDelay)
	o.limiter.Allow()
	if err := o.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("auto-continue: %w", err)
	}
	return nil
}

var sessionTitles = map[string]string{
	AgentInitializer:   "INITIALIZER",
	AgentCoding:        "CODING AGENT",
	AgentValidator:     "VALIDATOR",
	AgentArchitect:     "ARCHITECT",
	AgentReview:        "SPEC REVIEW",
	AgentSpecCreate:    "SPEC CREATE",
	AgentSpecValidate:  "SPEC VALIDATE",
	AgentSpecDecompose: "SPEC DECOMPOSE",
}

func (o *Orchestrator) sessionHeader(agent string) {
	o.banner(fmt.Sprintf("SESSION %d: %s", o.iteration, sessionTitles[agent]))
}

func (o *Orchestrator) banner(lines ...string) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintf(o.out, "\n%s\n", rule)
	for _, l := range lines {
		fmt.Fprintf(o.out, "  %s\n", l)
	}
	fmt.Fprintf(o.out, "%s\n\n", rule)
}

func (o *Orchestrator) printProgress() {
	passing, total := ledger.CountPassing(o.opts.ProjectDir)
	if total == 0 {
		fmt.Fprintln(o.out, "\nProgress: feature_list.json not yet created")
		return
	}
	fmt.Fprintf(o.out, "\nProgress: %d/%d features passing (%.1f%%)\n", passing, total, progress.NewStatus(passing, total).Percentage)
}

func (o *Orchestrator) printSummary(outcome Outcome) {
	if outcome == OutcomeAborted {
		return
	}
	o.banner("SESSION COMPLETE")
	fmt.Fprintf(o.out, "Project directory: %s\n", o.opts.ProjectDir)
	o.printProgress()
	if outcome != OutcomeComplete {
		return
	}
	initCmd, devCmd := detection.ProjectCommands(o.opts.ProjectDir, o.opts.Stack)
	rule := strings.Repeat("-", 70)
	fmt.Fprintf(o.out, "\n%s\n  TO RUN THE GENERATED APPLICATION:\n%s\n", rule, rule)
	abs, err := filepath.Abs(o.opts.ProjectDir)
	if err != nil {
		abs = o.opts.ProjectDir
	}
	fmt.Fprintf(o.out, "\n  cd %s\n", clierr.QuotePath(abs))
	fmt.Fprintln(o.out, "  ./init.sh           # Run the setup script")
	fmt.Fprintf(o.out, "  # Or manually: %s && %s\n%s\n", initCmd, devCmd, rule)
}

// sinceStart is the window for commits made during a session.
func sinceStart(start time.Time) time.Time {
	return start.Add(-time.Second)
}
