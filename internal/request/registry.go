package request

import (
	"log/slog"
	"sync"
)

// Registry keeps one tracker per (session, view). A session's trackers are
// discarded when it ends.
type Registry struct {
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]map[string]any
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger, sessions: make(map[string]map[string]any)}
}

// For returns the tracker of view for session, creating it on first use.
func For[T any](r *Registry, session, view string) *Tracker[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	views, ok := r.sessions[session]
	if !ok {
		views = make(map[string]any)
		r.sessions[session] = views
	}
	if t, ok := views[view].(*Tracker[T]); ok {
		return t
	}
	t := NewTracker[T](r.logger.With("view", view))
	views[view] = t
	return t
}

// Drop discards every tracker of session.
func (r *Registry) Drop(session string) {
	r.mu.Lock()
	delete(r.sessions, session)
	r.mu.Unlock()
}

// Len returns the number of sessions with trackers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
