package llm

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	llmContextKey contextKey = "llm_context"
)

// WithContext returns a context with LLM recording context attached.
// The context map is merged with any existing context.
func WithContext(ctx context.Context, values map[string]any) context.Context {
	existing := GetContext(ctx)
	if existing == nil {
		existing = make(map[string]any)
	}
	// Merge new values into existing
	for k, v := range values {
		existing[k] = v
	}
	return context.WithValue(ctx, llmContextKey, existing)
}

// GetContext retrieves the LLM recording context from context, if present.
func GetContext(ctx context.Context) map[string]any {
	if c, ok := ctx.Value(llmContextKey).(map[string]any); ok {
		// Return a copy to prevent mutation
		copy := make(map[string]any, len(c))
		for k, v := range c {
			copy[k] = v
		}
		return copy
	}
	return nil
}

// WithRequestContext is a convenience function to attach the identifiers a
// planner or vectorization call wants surfaced in LLM request logging: the
// discovery job or query that triggered the call, and the connection it
// concerns.
func WithRequestContext(ctx context.Context, connectionID uuid.UUID, jobOrQueryID string) context.Context {
	values := map[string]any{
		"connection_id": connectionID.String(),
	}
	if jobOrQueryID != "" {
		values["request_id"] = jobOrQueryID
	}
	return WithContext(ctx, values)
}
