package logger

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	refreshIDKey contextKey = "refresh_id"
)

// NewID returns a fresh correlation ID
func NewID() string {
	return uuid.New().String()
}

// WithRequestID tags ctx with the ID of the HTTP request being served
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithRefreshID tags ctx with the ID of one fetch/compute cycle
func WithRefreshID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, refreshIDKey, id)
}

// RequestID returns the request ID stored in ctx, or ""
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// RefreshID returns the refresh ID stored in ctx, or ""
func RefreshID(ctx context.Context) string {
	if id, ok := ctx.Value(refreshIDKey).(string); ok {
		return id
	}
	return ""
}
