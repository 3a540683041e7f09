package authclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukerupert/laundrydash/internal/database"
	"github.com/dukerupert/laundrydash/internal/identity"
	"github.com/dukerupert/laundrydash/internal/model"
	"github.com/dukerupert/laundrydash/internal/store"
	"github.com/dukerupert/laundrydash/internal/trace"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func setupIdentity(t *testing.T) (*identity.Provider, *identity.TokenIssuer) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	tokens, err := identity.NewTokenIssuer("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	return identity.NewProvider(store.NewSessionStore(db, time.Hour), tokens, discard), tokens
}

// headerServer records the Authorization and request ID headers of each call.
func headerServer(t *testing.T) (*httptest.Server, *atomic.Value, *atomic.Value, *atomic.Int32) {
	t.Helper()
	var auth, reqID atomic.Value
	var calls atomic.Int32
	auth.Store("")
	reqID.Store("")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		auth.Store(r.Header.Get("Authorization"))
		reqID.Store(r.Header.Get(trace.Header))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &auth, &reqID, &calls
}

func get(t *testing.T, client *http.Client, ctx context.Context, url string) error {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func TestTransportAttachesBearer(t *testing.T) {
	p, tokens := setupIdentity(t)
	srv, auth, _, _ := headerServer(t)
	client := NewClient(false, 0, discard)

	alice := model.User{ID: "uid-alice", Email: "alice@example.com"}
	s, _ := p.SignIn(context.Background(), alice)
	ctx := WithCredentials(context.Background(), s)

	if err := get(t, client, ctx, srv.URL+"/totals"); err != nil {
		t.Fatalf("get: %v", err)
	}

	h := auth.Load().(string)
	if !strings.HasPrefix(h, "Bearer ") {
		t.Fatalf("Authorization = %q, want Bearer token", h)
	}
	claims, err := tokens.Verify(strings.TrimPrefix(h, "Bearer "))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != alice.ID {
		t.Errorf("sub = %q, want %q", claims.Subject, alice.ID)
	}
}

func TestTransportNoSessionFails(t *testing.T) {
	p, _ := setupIdentity(t)
	srv, _, _, calls := headerServer(t)
	client := NewClient(false, 0, discard)

	tests := []struct {
		name string
		ctx  context.Context
	}{
		{"no credentials", context.Background()},
		{"stale session", WithCredentials(context.Background(), p.Session("stale"))},
		{"empty static", WithCredentials(context.Background(), StaticCredentials{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := get(t, client, tt.ctx, srv.URL+"/totals")
			if !errors.Is(err, ErrNoSession) {
				t.Errorf("err = %v, want ErrNoSession", err)
			}
		})
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("backend calls = %d, want 0", n)
	}
}

func TestTransportNeverReusesPreviousSessionToken(t *testing.T) {
	p, tokens := setupIdentity(t)
	srv, auth, _, _ := headerServer(t)
	client := NewClient(false, 0, discard)
	bg := context.Background()

	a, _ := p.SignIn(bg, model.User{ID: "uid-a"})
	if err := get(t, client, WithCredentials(bg, a), srv.URL+"/bonus-list"); err != nil {
		t.Fatalf("call as a: %v", err)
	}
	tokenA := auth.Load().(string)

	_ = a.SignOut(bg)
	if err := get(t, client, WithCredentials(bg, a), srv.URL+"/bonus-list"); !errors.Is(err, ErrNoSession) {
		t.Errorf("call after sign out: err = %v, want ErrNoSession", err)
	}

	b, _ := p.SignIn(bg, model.User{ID: "uid-b"})
	if err := get(t, client, WithCredentials(bg, b), srv.URL+"/bonus-list"); err != nil {
		t.Fatalf("call as b: %v", err)
	}
	tokenB := auth.Load().(string)
	if tokenA == tokenB {
		t.Fatal("expected a different token after re-sign-in")
	}
	claims, _ := tokens.Verify(strings.TrimPrefix(tokenB, "Bearer "))
	if claims.Subject != "uid-b" {
		t.Errorf("sub = %q, want uid-b", claims.Subject)
	}
}

func TestTransportForceRefresh(t *testing.T) {
	p, _ := setupIdentity(t)
	srv, auth, _, _ := headerServer(t)
	client := NewClient(true, 0, discard)

	s, _ := p.SignIn(context.Background(), model.User{ID: "uid-a"})
	ctx := WithCredentials(context.Background(), s)

	_ = get(t, client, ctx, srv.URL+"/totals")
	first := auth.Load().(string)
	_ = get(t, client, ctx, srv.URL+"/totals")
	if second := auth.Load().(string); first == second {
		t.Error("expected a fresh token per call")
	}
}

func TestTransportStaticCredentials(t *testing.T) {
	srv, auth, _, _ := headerServer(t)
	client := NewClient(false, 0, discard)
	ctx := WithCredentials(context.Background(), StaticCredentials{Token: "svc-token"})

	if err := get(t, client, ctx, srv.URL+"/totals"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if h := auth.Load().(string); h != "Bearer svc-token" {
		t.Errorf("Authorization = %q, want %q", h, "Bearer svc-token")
	}
}

func TestTransportForwardsRequestID(t *testing.T) {
	srv, _, reqID, _ := headerServer(t)
	client := NewClient(false, 0, discard)
	ctx := WithCredentials(context.Background(), StaticCredentials{Token: "svc-token"})
	ctx = trace.WithID(ctx, "req-123")

	if err := get(t, client, ctx, srv.URL+"/totals"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := reqID.Load().(string); got != "req-123" {
		t.Errorf("%s = %q, want %q", trace.Header, got, "req-123")
	}
}

type failingCreds struct{}

func (failingCreds) CurrentUser(ctx context.Context) (*model.User, error) {
	return &model.User{ID: "uid-a"}, nil
}

func (failingCreds) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	return "", errors.New("signer unavailable")
}

func TestTransportTokenError(t *testing.T) {
	srv, _, _, calls := headerServer(t)
	client := NewClient(false, 0, discard)
	ctx := WithCredentials(context.Background(), failingCreds{})

	err := get(t, client, ctx, srv.URL+"/totals")
	if !errors.Is(err, ErrToken) {
		t.Errorf("err = %v, want ErrToken", err)
	}
	if calls.Load() != 0 {
		t.Error("expected no backend call")
	}
}

func TestTransportCustomResolve(t *testing.T) {
	srv, auth, _, _ := headerServer(t)
	client := &http.Client{Transport: &Transport{
		Resolve: func(ctx context.Context) (Credentials, bool) {
			return StaticCredentials{Token: "resolved"}, true
		},
		Logger: discard,
	}}

	if err := get(t, client, context.Background(), srv.URL+"/totals"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if h := auth.Load().(string); h != "Bearer resolved" {
		t.Errorf("Authorization = %q, want %q", h, "Bearer resolved")
	}
}
