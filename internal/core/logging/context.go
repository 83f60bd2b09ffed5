package logging

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	backendKey   contextKey = "backend"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithBackend records the active storage backend on the context.
func WithBackend(ctx context.Context, backend string) context.Context {
	return context.WithValue(ctx, backendKey, backend)
}

// GetRequestID retrieves the request ID from the context.
// Returns empty string if not present.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetBackend retrieves the storage backend name from the context.
func GetBackend(ctx context.Context) string {
	if b, ok := ctx.Value(backendKey).(string); ok {
		return b
	}
	return ""
}
