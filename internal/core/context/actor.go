// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Actor identifies who requested an operation.
// Only the id travels with the request; display names come from the actor resolver.
type Actor struct {
	UserID    string
	SessionID string
}

type actorContextKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns Actor from context.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorContextKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetUserID returns the acting user id or empty string.
func GetUserID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.UserID
	}
	return ""
}
