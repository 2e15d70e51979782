package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	// CycleIDKey is the context key for the sync cycle ID
	CycleIDKey contextKey = "cycle_id"
)

// WithCycleID adds a cycle ID to the context
func WithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, CycleIDKey, cycleID)
}

// GetCycleID retrieves the cycle ID from the context.
// Returns empty string if not set.
func GetCycleID(ctx context.Context) string {
	if id, ok := ctx.Value(CycleIDKey).(string); ok {
		return id
	}
	return ""
}

// GenerateCycleID generates a new UUID-based cycle ID
func GenerateCycleID() string {
	return uuid.New().String()
}
