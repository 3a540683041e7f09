// Package authclient attaches the caller's bearer credential to outgoing
// backend calls.
package authclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/laundrydash/internal/identity"
	"github.com/dukerupert/laundrydash/internal/model"
	"github.com/dukerupert/laundrydash/internal/trace"
)

var (
	// ErrNoSession fails a call made while nobody is signed in.
	ErrNoSession = errors.New("authclient: no signed-in session")
	ErrToken     = errors.New("authclient: could not obtain token")
)

// Credentials identify the caller of a backend call. *identity.Session
// implements it.
type Credentials interface {
	CurrentUser(ctx context.Context) (*model.User, error)
	IDToken(ctx context.Context, forceRefresh bool) (string, error)
}

type credentialsKey struct{}

func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

func FromContext(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(credentialsKey{}).(Credentials)
	return c, ok && c != nil
}

// StaticCredentials is a fixed service-account token. It is only used when a
// caller puts it on the context explicitly.
type StaticCredentials struct {
	Token string
	User  model.User
}

func (s StaticCredentials) CurrentUser(ctx context.Context) (*model.User, error) {
	if s.Token == "" {
		return nil, nil
	}
	u := s.User
	return &u, nil
}

func (s StaticCredentials) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	if s.Token == "" {
		return "", ErrNoSession
	}
	return s.Token, nil
}

// Transport is an http.RoundTripper that sets Authorization: Bearer on every
// request from the credentials found on the request context.
type Transport struct {
	Base http.RoundTripper
	// Resolve finds the caller's credentials. Defaults to FromContext.
	Resolve func(ctx context.Context) (Credentials, bool)
	// ForceRefresh mints a new token for every call.
	ForceRefresh bool
	Logger       *slog.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	token, err := t.token(ctx)
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		t.logger().Warn("backend call without credentials",
			"method", req.Method,
			"path", req.URL.Path,
			"request_id", trace.ID(ctx),
			"error", err,
		)
		return nil, err
	}

	out := req.Clone(ctx)
	out.Header.Set("Authorization", "Bearer "+token)
	if id := trace.ID(ctx); id != "" && out.Header.Get(trace.Header) == "" {
		out.Header.Set(trace.Header, id)
	}
	return t.base().RoundTrip(out)
}

func (t *Transport) token(ctx context.Context) (string, error) {
	resolve := t.Resolve
	if resolve == nil {
		resolve = FromContext
	}
	creds, ok := resolve(ctx)
	if !ok {
		return "", ErrNoSession
	}

	u, err := creds.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrToken, err)
	}
	if u == nil {
		return "", ErrNoSession
	}

	token, err := creds.IDToken(ctx, t.ForceRefresh)
	if errors.Is(err, identity.ErrNoSession) || errors.Is(err, ErrNoSession) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrToken, err)
	}
	return token, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// NewClient returns an http.Client whose calls are authorized by Transport.
// A zero timeout leaves calls unbounded.
func NewClient(forceRefresh bool, timeout time.Duration, logger *slog.Logger) *http.Client {
	return &http.Client{
		Transport: &Transport{ForceRefresh: forceRefresh, Logger: logger},
		Timeout:   timeout,
	}
}
