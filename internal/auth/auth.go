package auth

import (
	"context"

	"github.com/dukerupert/laundrydash/internal/identity"
	"github.com/dukerupert/laundrydash/internal/model"
)

// CookieName is the browser cookie holding the session token.
const CookieName = "laundrydash_session"

type contextKey struct{}

// AuthContext is what the session middleware learned about the viewer.
type AuthContext struct {
	SessionID string
	User      model.User
	Session   *identity.Session
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

// User returns the signed-in user, or nil.
func User(ctx context.Context) *model.User {
	ac, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	u := ac.User
	return &u
}

// SessionToken returns the viewer's session token, or "".
func SessionToken(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok || ac.Session == nil {
		return ""
	}
	return ac.Session.Token()
}
