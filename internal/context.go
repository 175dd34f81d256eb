package internal

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	RequestIDKey contextKey = "request_id"
)

// NewRequestID generates a short request identifier for log correlation
func NewRequestID() string {
	return "req_" + strings.Split(uuid.NewString(), "-")[0]
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return "unknown"
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}
