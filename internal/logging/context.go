// internal/logging/context.go
package logging

import (
	"context"

	"go.uber.org/zap"
)

type sessionCtxKey struct{}
type agentCtxKey struct{}
type iterationCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 3)

	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		fields = append(fields, zap.String("session_id", sessionID))
	}
	if agent := AgentTypeFromContext(ctx); agent != "" {
		fields = append(fields, zap.String("agent_type", agent))
	}
	if iteration := IterationFromContext(ctx); iteration > 0 {
		fields = append(fields, zap.Int("iteration", iteration))
	}

	return fields
}

// WithSessionID adds a log session ID to context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, id)
}

// SessionIDFromContext extracts the session ID from context.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionCtxKey{}).(string); ok {
		return id
	}
	return ""
}

// WithAgentType tags context with the running agent (initializer, coding, validator).
func WithAgentType(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, agentCtxKey{}, agent)
}

// AgentTypeFromContext extracts the agent type from context.
func AgentTypeFromContext(ctx context.Context) string {
	if a, ok := ctx.Value(agentCtxKey{}).(string); ok {
		return a
	}
	return ""
}

// WithIteration records the orchestrator iteration in context.
func WithIteration(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, iterationCtxKey{}, n)
}

// IterationFromContext extracts the orchestrator iteration.
func IterationFromContext(ctx context.Context) int {
	if n, ok := ctx.Value(iterationCtxKey{}).(int); ok {
		return n
	}
	return 0
}
