package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const (
	correlationKey contextKey = iota
	ownerKey
)

// WithCorrelationID returns a context carrying the request correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// GetCorrelationID returns the correlation ID, or "" when absent.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

// GenerateCorrelationID mints a fresh UUID correlation ID.
func GenerateCorrelationID() string {
	return uuid.New().String()
}

// MustGetCorrelationID returns the context's correlation ID, minting one
// when absent.
func MustGetCorrelationID(ctx context.Context) string {
	if id := GetCorrelationID(ctx); id != "" {
		return id
	}
	return GenerateCorrelationID()
}

// WithOwnerID tags the context with the owning agency. Context-aware log
// calls pick it up as the owner_id field, so every line written during a
// provisioning run can be traced back to the agency it ran for.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey, ownerID)
}

// GetOwnerID returns the owning agency ID, or "" when absent.
func GetOwnerID(ctx context.Context) string {
	if id, ok := ctx.Value(ownerKey).(string); ok {
		return id
	}
	return ""
}
