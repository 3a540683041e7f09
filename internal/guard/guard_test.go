package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/laundrydash/internal/identity"
	"github.com/dukerupert/laundrydash/internal/model"
)

type fakeSource struct {
	mu           sync.Mutex
	fn           func(*model.User)
	unsubscribed int
}

func (f *fakeSource) OnAuthStateChanged(fn func(*model.User)) identity.Subscription {
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
	return f
}

func (f *fakeSource) Unsubscribe() {
	f.mu.Lock()
	f.unsubscribed++
	f.mu.Unlock()
}

func (f *fakeSource) emit(u *model.User) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	fn(u)
}

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) Navigate(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

var alice = &model.User{ID: "uid-alice", DisplayName: "Alice", Email: "alice@example.com"}

func TestInitialStateIsLoading(t *testing.T) {
	src := &fakeSource{}
	g := New(src, &recorder{})
	defer g.Close()

	st := g.State()
	if !st.IsLoading {
		t.Error("expected IsLoading before first notification")
	}
	if st.CurrentUser != nil {
		t.Errorf("CurrentUser = %+v, want nil", st.CurrentUser)
	}
	if g.Phase() != Checking {
		t.Errorf("phase = %v, want checking", g.Phase())
	}
}

func TestAuthenticated(t *testing.T) {
	src := &fakeSource{}
	nav := &recorder{}
	g := New(src, nav)
	defer g.Close()

	src.emit(alice)

	st := g.State()
	if st.IsLoading {
		t.Error("expected IsLoading false after notification")
	}
	if st.CurrentUser == nil || st.CurrentUser.ID != alice.ID {
		t.Errorf("CurrentUser = %+v, want alice", st.CurrentUser)
	}
	if nav.count() != 0 {
		t.Errorf("navigations = %d, want 0", nav.count())
	}
}

func TestUnauthenticatedRedirectsOnce(t *testing.T) {
	src := &fakeSource{}
	nav := &recorder{}
	g := New(src, nav)
	defer g.Close()

	src.emit(nil)
	src.emit(nil)

	if nav.count() != 1 {
		t.Fatalf("navigations = %d, want 1", nav.count())
	}
	if nav.paths[0] != DefaultLoginPath {
		t.Errorf("path = %q, want %q", nav.paths[0], DefaultLoginPath)
	}
	if g.Phase() != Unauthenticated {
		t.Errorf("phase = %v, want unauthenticated", g.Phase())
	}
}

func TestRedirectOnEachSignOut(t *testing.T) {
	src := &fakeSource{}
	nav := &recorder{}
	g := New(src, nav, WithLoginPath("/masuk"))
	defer g.Close()

	src.emit(alice)
	src.emit(nil)
	src.emit(alice)
	src.emit(nil)

	if nav.count() != 2 {
		t.Fatalf("navigations = %d, want 2", nav.count())
	}
	for _, p := range nav.paths {
		if p != "/masuk" {
			t.Errorf("path = %q, want /masuk", p)
		}
	}
}

func TestIsLoadingNeverReturns(t *testing.T) {
	src := &fakeSource{}
	g := New(src, &recorder{})
	defer g.Close()

	for _, u := range []*model.User{nil, alice, nil, alice} {
		src.emit(u)
		if g.State().IsLoading {
			t.Fatal("IsLoading became true after first notification")
		}
	}
}

func TestWait(t *testing.T) {
	src := &fakeSource{}
	g := New(src, &recorder{})
	defer g.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		src.emit(alice)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := g.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if st.IsLoading || st.CurrentUser == nil {
		t.Errorf("state = %+v, want authenticated", st)
	}
}

func TestWaitContextDone(t *testing.T) {
	g := New(&fakeSource{}, &recorder{})
	defer g.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, err := g.Wait(ctx)
	if err == nil {
		t.Fatal("expected context error")
	}
	if !st.IsLoading {
		t.Error("expected IsLoading while no notification arrived")
	}
}

func TestCloseUnsubscribes(t *testing.T) {
	src := &fakeSource{}
	nav := &recorder{}
	g := New(src, nav)

	g.Close()
	g.Close()
	if src.unsubscribed != 1 {
		t.Errorf("unsubscribed = %d, want 1", src.unsubscribed)
	}

	src.emit(nil)
	if nav.count() != 0 {
		t.Errorf("navigations after close = %d, want 0", nav.count())
	}
	if !g.State().IsLoading {
		t.Error("expected state untouched after close")
	}
}

func TestNavigatorFunc(t *testing.T) {
	var got string
	src := &fakeSource{}
	g := New(src, NavigatorFunc(func(p string) { got = p }))
	defer g.Close()

	src.emit(nil)
	if got != DefaultLoginPath {
		t.Errorf("navigated to %q, want %q", got, DefaultLoginPath)
	}
}
