// Package guard watches a browser session's auth state and sends the viewer
// to the login page when nobody is signed in.
package guard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukerupert/laundrydash/internal/identity"
	"github.com/dukerupert/laundrydash/internal/model"
)

// DefaultLoginPath is where signed-out visitors are sent.
const DefaultLoginPath = "/login"

// Phase is the guard's view of the session.
type Phase int

const (
	Checking Phase = iota
	Authenticated
	Unauthenticated
)

func (p Phase) String() string {
	switch p {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "checking"
	}
}

// State is what views read from the guard.
type State struct {
	CurrentUser *model.User
	IsLoading   bool
}

// Source publishes auth-state changes. *identity.Session implements it.
type Source interface {
	OnAuthStateChanged(fn func(*model.User)) identity.Subscription
}

// Navigator moves the viewer to another page.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// Option configures a Guard.
type Option func(*Guard)

// WithLoginPath overrides DefaultLoginPath.
func WithLoginPath(path string) Option {
	return func(g *Guard) { g.loginPath = path }
}

// WithLogger sets the logger for auth-state transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

// Guard watches one session and navigates away when it has no user.
type Guard struct {
	nav       Navigator
	loginPath string
	logger    *slog.Logger
	sub       identity.Subscription
	ready     chan struct{}

	mu     sync.Mutex
	state  State
	phase  Phase
	closed bool
}

// New starts watching src. The guard reports IsLoading until the first
// notification arrives.
func New(src Source, nav Navigator, opts ...Option) *Guard {
	g := &Guard{
		nav:       nav,
		loginPath: DefaultLoginPath,
		logger:    slog.Default(),
		ready:     make(chan struct{}),
		state:     State{IsLoading: true},
		phase:     Checking,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.sub = src.OnAuthStateChanged(g.handle)
	return g
}

func (g *Guard) handle(u *model.User) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	prev := g.phase
	g.state = State{CurrentUser: u}
	if u != nil {
		g.phase = Authenticated
	} else {
		g.phase = Unauthenticated
	}
	if prev == Checking {
		close(g.ready)
	}
	redirect := u == nil && prev != Unauthenticated
	g.mu.Unlock()

	if redirect {
		g.logger.Debug("not signed in, redirecting", "path", g.loginPath)
		g.nav.Navigate(g.loginPath)
	}
}

// State returns the latest auth state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Phase returns the current phase.
func (g *Guard) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Wait blocks until the first definitive auth state is known.
func (g *Guard) Wait(ctx context.Context) (State, error) {
	select {
	case <-g.ready:
		return g.State(), nil
	case <-ctx.Done():
		return g.State(), ctx.Err()
	}
}

// Close stops watching. Notifications arriving later are ignored.
func (g *Guard) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.mu.Unlock()
	g.sub.Unsubscribe()
}
