package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/claude-agent/internal/session"
	"github.com/fyrsmithlabs/claude-agent/internal/telemetry"
)

const instrumentationName = "github.com/fyrsmithlabs/claude-agent/internal/orchestrator"

// instruments turns agent sessions into spans and session metrics.
type instruments struct {
	tracer   trace.Tracer
	sessions metric.Int64Counter
	duration metric.Float64Histogram
	turns    metric.Int64Histogram
}

// newInstruments builds instruments on tel. A nil tel falls back to the
// global providers, which are no-ops unless telemetry was set up.
func newInstruments(tel *telemetry.Telemetry) *instruments {
	meter := tel.Meter(instrumentationName)
	ins := &instruments{tracer: tel.Tracer(instrumentationName)}

	// Instrument creation only fails on invalid names; a nil instrument
	// is skipped at record time.
	ins.sessions, _ = meter.Int64Counter("claude_agent.sessions",
		metric.WithDescription("Agent sessions by agent type and status"),
		metric.WithUnit("{session}"))
	ins.duration, _ = meter.Float64Histogram("claude_agent.session.duration",
		metric.WithDescription("Agent session wall time"),
		metric.WithUnit("s"))
	ins.turns, _ = meter.Int64Histogram("claude_agent.session.turns",
		metric.WithDescription("Conversation turns used per session"),
		metric.WithUnit("{turn}"))
	return ins
}

// startSpan opens the span for one agent session.
func (i *instruments) startSpan(ctx context.Context, req session.Request, iteration int) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, "session."+req.AgentType,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("agent.type", req.AgentType),
			attribute.Int("agent.iteration", iteration),
			attribute.String("agent.model", req.Model),
		))
}

// endSpan records the session result on span and the session metrics.
func (i *instruments) endSpan(ctx context.Context, span trace.Span, req session.Request, res session.Result) {
	status := string(res.Status)
	span.SetAttributes(
		attribute.String("session.status", status),
		attribute.Int("session.turns", res.Turns),
	)
	if res.Status == session.StatusError {
		span.SetStatus(codes.Error, res.Text)
	}
	span.End()

	attrs := metric.WithAttributes(
		attribute.String("agent.type", req.AgentType),
		attribute.String("session.status", status),
	)
	if i.sessions != nil {
		i.sessions.Add(ctx, 1, attrs)
	}
	if i.duration != nil {
		i.duration.Record(ctx, res.Duration.Seconds(), attrs)
	}
	if i.turns != nil {
		i.turns.Record(ctx, int64(res.Turns), attrs)
	}
}
