// Package requestctx carries the authenticated actor through request contexts.
package requestctx

import (
	"context"
	"strings"
)

// userIDContextKey is the context key for authenticated user identity.
type userIDContextKey struct{}

// WithUserID stores a user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDContextKey{}, strings.TrimSpace(userID))
}

// UserIDFromContext returns the user identifier stored in context.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userIDContextKey{}).(string)
	return value
}

// HasUserID reports whether ctx carries a non-empty user identifier.
func HasUserID(ctx context.Context) bool {
	return UserIDFromContext(ctx) != ""
}
