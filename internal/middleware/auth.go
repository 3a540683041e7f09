package middleware

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/dukerupert/laundrydash/internal/auth"
	"github.com/dukerupert/laundrydash/internal/authclient"
	"github.com/dukerupert/laundrydash/internal/guard"
	"github.com/dukerupert/laundrydash/internal/identity"
)

// deferredRedirect records the guard's navigation so the handler goroutine
// can write it to the response.
type deferredRedirect struct {
	mu   sync.Mutex
	path string
}

func (d *deferredRedirect) Navigate(path string) {
	d.mu.Lock()
	d.path = path
	d.mu.Unlock()
}

func (d *deferredRedirect) target() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

// RequireSession runs a session guard for the request's session cookie. The
// view is served only once the guard reports a signed-in user; otherwise the
// viewer is sent to the login page and nothing is rendered.
// HTMX-aware: returns HX-Redirect header instead of 303 redirect for HTMX requests.
func RequireSession(provider *identity.Provider, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			if cookie, err := r.Cookie(auth.CookieName); err == nil {
				token = cookie.Value
			}
			sess := provider.Session(token)

			nav := &deferredRedirect{}
			g := guard.New(sess, nav, guard.WithLogger(logger))
			defer g.Close()

			st, err := g.Wait(r.Context())
			if err != nil {
				// client went away while the session was being checked
				return
			}
			if st.CurrentUser == nil {
				path := nav.target()
				if path == "" {
					path = guard.DefaultLoginPath
				}
				redirectTo(w, r, path)
				return
			}

			info, err := sess.Info(r.Context())
			if err != nil {
				logger.Warn("session vanished during request", "error", err)
				redirectTo(w, r, guard.DefaultLoginPath)
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{
				SessionID: info.ID,
				User:      *st.CurrentUser,
				Session:   sess,
			})
			ctx = authclient.WithCredentials(ctx, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func redirectTo(w http.ResponseWriter, r *http.Request, path string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}
