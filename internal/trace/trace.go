// Package trace carries a request ID through contexts and outgoing calls.
package trace

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header used to propagate request IDs.
const Header = "X-Request-ID"

type contextKey struct{}

func New() string {
	return uuid.NewString()
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// ID returns the request ID on ctx, or "".
func ID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
