package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/laundrydash/internal/auth"
	"github.com/dukerupert/laundrydash/internal/identity"
	"github.com/dukerupert/laundrydash/internal/laundry"
	"github.com/dukerupert/laundrydash/internal/view"
)

// csrfCookie is set by Google Identity Services and echoed in the form post.
const csrfCookie = "g_csrf_token"

type loginData struct {
	GoogleClientID string
}

type AuthHandler struct {
	provider       *identity.Provider
	backend        *laundry.Client
	render         *Renderer
	googleClientID string
	sessionTTL     time.Duration
	logger         *slog.Logger
}

func NewAuthHandler(
	provider *identity.Provider,
	backend *laundry.Client,
	rd *Renderer,
	googleClientID string,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider:       provider,
		backend:        backend,
		render:         rd,
		googleClientID: googleClientID,
		sessionTTL:     sessionTTL,
		logger:         logger,
	}
}

// LoginPage shows the sign-in view, or sends a signed-in viewer home.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil && cookie.Value != "" {
		u, err := h.provider.Session(cookie.Value).CurrentUser(r.Context())
		if err != nil {
			h.logger.Error("check session", "error", err)
		}
		if u != nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}
	h.loginPage(w, http.StatusOK, "")
}

// Login exchanges a Google credential with the backend and signs the user in.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.loginPage(w, http.StatusBadRequest, view.MsgLoginFailed)
		return
	}
	if cookie, err := r.Cookie(csrfCookie); err == nil {
		if r.PostFormValue(csrfCookie) != cookie.Value {
			h.logger.Warn("login csrf token mismatch", "remote", r.RemoteAddr)
			h.loginPage(w, http.StatusBadRequest, view.MsgLoginFailed)
			return
		}
	}

	credential := strings.TrimSpace(r.PostFormValue("credential"))
	if credential == "" {
		h.loginPage(w, http.StatusBadRequest, view.MsgLoginFailed)
		return
	}

	user, err := h.backend.ExchangeGoogle(r.Context(), credential)
	if err != nil {
		h.logger.Warn("google sign-in rejected", "error", err)
		h.loginPage(w, http.StatusUnauthorized, view.MsgLoginFailed)
		return
	}

	sess, err := h.provider.SignIn(r.Context(), *user)
	if err != nil {
		h.logger.Error("sign in", "user", user.ID, "error", err)
		h.loginPage(w, http.StatusInternalServerError, view.MsgLoginFailed)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    sess.Token(),
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout signs the session out, which also tells its other open tabs.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil && cookie.Value != "" {
		if err := h.provider.Session(cookie.Value).SignOut(r.Context()); err != nil {
			h.logger.Error("sign out", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) loginPage(w http.ResponseWriter, status int, msg string) {
	h.render.Render(w, status, "login", page{
		Title:   "Masuk - Laundry Dashboard",
		Message: msg,
		Error:   msg != "",
		Data:    loginData{GoogleClientID: h.googleClientID},
	})
}
