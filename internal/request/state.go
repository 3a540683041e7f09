// Package request tracks the lifecycle of backend calls issued by a view.
package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type Status int

const (
	Idle Status = iota
	Pending
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// ErrPanic marks a call that panicked instead of returning.
var ErrPanic = errors.New("request: call panicked")

// State is the tagged result of one call. Data is set only when Succeeded,
// Err only when Failed.
type State[T any] struct {
	Status Status
	Data   T
	Err    error
}

func Success[T any](data T) State[T] {
	return State[T]{Status: Succeeded, Data: data}
}

func Failure[T any](err error) State[T] {
	return State[T]{Status: Failed, Err: err}
}

func (s State[T]) IsPending() bool { return s.Status == Pending }

// Tracker holds the state of one view's call. At most one call is in
// flight at a time.
type Tracker[T any] struct {
	logger *slog.Logger

	mu    sync.Mutex
	state State[T]
}

func NewTracker[T any](logger *slog.Logger) *Tracker[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker[T]{logger: logger}
}

func (t *Tracker[T]) State() State[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Set replaces the state unless a call is pending.
func (t *Tracker[T]) Set(s State[T]) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsPending() {
		return false
	}
	t.state = s
	return true
}

// Run calls fn and records its outcome. When a call is already pending Run
// does nothing and returns the current state with started false. The pending
// flag is cleared even if fn panics.
func (t *Tracker[T]) Run(ctx context.Context, fn func(ctx context.Context) (T, error)) (result State[T], started bool) {
	t.mu.Lock()
	if t.state.IsPending() {
		s := t.state
		t.mu.Unlock()
		return s, false
	}
	t.state = State[T]{Status: Pending}
	t.mu.Unlock()
	started = true

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("request panicked", "panic", r)
			result = Failure[T](fmt.Errorf("%w: %v", ErrPanic, r))
		}
		t.mu.Lock()
		t.state = result
		t.mu.Unlock()
	}()

	data, err := fn(ctx)
	if err != nil {
		return Failure[T](err), true
	}
	return Success(data), true
}
