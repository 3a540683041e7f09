// Package identity owns signed-in sessions: it signs staff in and out, mints
// bearer tokens for the backend, and publishes auth-state notifications per
// browser session.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/laundrydash/internal/model"
	"github.com/dukerupert/laundrydash/internal/store"
)

// ErrNoSession is returned when a session token has no live signed-in user.
var ErrNoSession = errors.New("identity: no signed-in session")

// Subscription is an active auth-state listener.
type Subscription interface {
	// Unsubscribe stops deliveries. It is safe to call more than once.
	Unsubscribe()
}

// Provider is the identity provider for the dashboard.
type Provider struct {
	sessions *store.SessionStore
	tokens   *TokenIssuer
	logger   *slog.Logger

	mu        sync.Mutex
	listeners map[string]map[*listener]struct{}
	versions  map[string]uint64
	initial   map[string]int
	onEnd     []func(token string)
}

func NewProvider(sessions *store.SessionStore, tokens *TokenIssuer, logger *slog.Logger) *Provider {
	return &Provider{
		sessions:  sessions,
		tokens:    tokens,
		logger:    logger,
		listeners: make(map[string]map[*listener]struct{}),
		versions:  make(map[string]uint64),
		initial:   make(map[string]int),
	}
}

// Session returns the handle for a browser session token. The token may be
// empty or stale; the handle then reports no user.
func (p *Provider) Session(token string) *Session {
	return &Session{p: p, token: token}
}

// OnSessionEnd registers fn to run with the session token whenever a
// session is signed out or expires.
func (p *Provider) OnSessionEnd(fn func(token string)) {
	p.mu.Lock()
	p.onEnd = append(p.onEnd, fn)
	p.mu.Unlock()
}

func (p *Provider) ended(token string) {
	p.mu.Lock()
	hooks := append([]func(string){}, p.onEnd...)
	p.mu.Unlock()
	for _, fn := range hooks {
		fn(token)
	}
}

// SignIn creates a session for the user and returns its handle.
func (p *Provider) SignIn(ctx context.Context, u model.User) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, errors.New("identity: user id is required")
	}
	sess, err := p.sessions.Create(u)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	p.logger.Info("signed in", "session", sess.ID, "user", u.ID)
	p.notify(sess.Token, &sess.User)
	return &Session{p: p, token: sess.Token}, nil
}

func (p *Provider) signOut(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sess, err := p.sessions.GetByToken(token)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if _, err := p.sessions.DeleteByToken(token); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if sess != nil {
		p.tokens.Forget(sess.ID)
		p.logger.Info("signed out", "session", sess.ID, "user", sess.User.ID)
	}
	p.notify(token, nil)
	p.ended(token)
	return nil
}

// ExpireSessions removes expired sessions and tells their listeners.
func (p *Provider) ExpireSessions() (int, error) {
	tokens, err := p.sessions.ExpiredTokens()
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, nil
	}
	if _, err := p.sessions.DeleteExpired(); err != nil {
		return 0, err
	}
	for _, t := range tokens {
		p.notify(t, nil)
		p.ended(t)
	}
	return len(tokens), nil
}

func (p *Provider) lookup(token string) (*model.Session, error) {
	sess, err := p.sessions.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		p.invalidate(token)
	}
	return sess, nil
}

// invalidate tells listeners that still believe in a user that the session is gone.
func (p *Provider) invalidate(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	stale := false
	for l := range p.listeners[token] {
		if l.last != nil {
			stale = true
			break
		}
	}
	if stale {
		p.notifyLocked(token, nil)
	}
}

func (p *Provider) notify(token string, u *model.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifyLocked(token, u)
}

func (p *Provider) notifyLocked(token string, u *model.User) {
	p.versions[token]++
	for l := range p.listeners[token] {
		l.last = u
		l.push(u)
	}
	p.forgetVersionLocked(token)
}

// forgetVersionLocked drops the change counter once nobody is listening and
// no initial delivery still needs it for its recheck.
func (p *Provider) forgetVersionLocked(token string) {
	if len(p.listeners[token]) == 0 && p.initial[token] == 0 {
		delete(p.versions, token)
	}
}

func (p *Provider) beginInitial(token string) {
	p.mu.Lock()
	p.initial[token]++
	p.mu.Unlock()
}

func (p *Provider) endInitial(token string) {
	p.mu.Lock()
	if p.initial[token]--; p.initial[token] <= 0 {
		delete(p.initial, token)
	}
	p.forgetVersionLocked(token)
	p.mu.Unlock()
}

func (p *Provider) subscribe(token string, fn func(*model.User)) Subscription {
	l := newListener(fn)
	go l.run()
	p.beginInitial(token)
	go p.deliverInitial(token, l)
	return &subscription{p: p, token: token, l: l}
}

// deliverInitial registers the listener and queues the current state. A
// change racing the lookup forces a retry so the initial state never lands
// after a newer one.
func (p *Provider) deliverInitial(token string, l *listener) {
	defer p.endInitial(token)
	for {
		p.mu.Lock()
		version := p.versions[token]
		p.mu.Unlock()

		var user *model.User
		sess, err := p.sessions.GetByToken(token)
		if err != nil {
			p.logger.Error("auth state lookup", "error", err)
		} else if sess != nil {
			user = &sess.User
		}

		p.mu.Lock()
		if l.closed() {
			p.mu.Unlock()
			return
		}
		if p.versions[token] != version {
			p.mu.Unlock()
			continue
		}
		if p.listeners[token] == nil {
			p.listeners[token] = make(map[*listener]struct{})
		}
		p.listeners[token][l] = struct{}{}
		l.last = user
		l.push(user)
		p.mu.Unlock()
		return
	}
}

func (p *Provider) unsubscribe(token string, l *listener) {
	p.mu.Lock()
	if ls, ok := p.listeners[token]; ok {
		delete(ls, l)
		if len(ls) == 0 {
			delete(p.listeners, token)
			p.forgetVersionLocked(token)
		}
	}
	p.mu.Unlock()
}

func (p *Provider) listenerCount(token string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners[token])
}

// Session is the explicit handle for one browser session. Views receive it
// through the request context instead of reading ambient state.
type Session struct {
	p     *Provider
	token string
}

// Token returns the browser session token (the cookie value).
func (s *Session) Token() string {
	return s.token
}

// Info returns the live stored session, or ErrNoSession.
func (s *Session) Info(ctx context.Context) (*model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := s.p.lookup(s.token)
	if err != nil {
		return nil, fmt.Errorf("current session: %w", err)
	}
	if sess == nil {
		return nil, ErrNoSession
	}
	return sess, nil
}

// CurrentUser reads the live user of the session. It returns nil without an
// error when nobody is signed in.
func (s *Session) CurrentUser(ctx context.Context) (*model.User, error) {
	sess, err := s.Info(ctx)
	if errors.Is(err, ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess.User, nil
}

// IDToken returns a bearer token for the signed-in user.
func (s *Session) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	sess, err := s.Info(ctx)
	if err != nil {
		return "", err
	}
	return s.p.tokens.Token(sess.ID, sess.User, forceRefresh)
}

// OnAuthStateChanged calls fn with the current user (nil when signed out)
// and again on every change, in order, on a dedicated goroutine.
func (s *Session) OnAuthStateChanged(fn func(*model.User)) Subscription {
	return s.p.subscribe(s.token, fn)
}

// SignOut ends the session and notifies its listeners.
func (s *Session) SignOut(ctx context.Context) error {
	return s.p.signOut(ctx, s.token)
}

type subscription struct {
	p     *Provider
	token string
	l     *listener
	once  sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.p.unsubscribe(s.token, s.l)
		s.l.close()
	})
}

// listener delivers queued states to fn in order.
type listener struct {
	fn   func(*model.User)
	wake chan struct{}
	done chan struct{}

	mu    sync.Mutex
	queue []*model.User

	// last is the most recent state pushed, guarded by Provider.mu.
	last *model.User
}

func newListener(fn func(*model.User)) *listener {
	return &listener{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (l *listener) push(u *model.User) {
	if u != nil {
		c := *u
		u = &c
	}
	l.mu.Lock()
	l.queue = append(l.queue, u)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *listener) next() (*model.User, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	u := l.queue[0]
	l.queue = l.queue[1:]
	return u, true
}

func (l *listener) run() {
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}
		for {
			u, ok := l.next()
			if !ok {
				break
			}
			if l.closed() {
				return
			}
			l.fn(u)
		}
	}
}

func (l *listener) close() {
	close(l.done)
}

func (l *listener) closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
