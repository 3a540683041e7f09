package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/laundrydash/internal/handler"
	"github.com/dukerupert/laundrydash/internal/identity"
	"github.com/dukerupert/laundrydash/internal/laundry"
	"github.com/dukerupert/laundrydash/internal/middleware"
	"github.com/dukerupert/laundrydash/internal/request"
	ws "github.com/dukerupert/laundrydash/internal/websocket"
)

// Options carries the settings the router needs from the config.
type Options struct {
	GoogleClientID string
	SessionTTL     time.Duration
}

type Server struct {
	provider     *identity.Provider
	hub          *ws.Hub
	trackers     *request.Registry
	authH        *handler.AuthHandler
	dashboardH   *handler.DashboardHandler
	serviceTypeH *handler.ServiceTypeHandler
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(provider *identity.Provider, backend *laundry.Client, rd *handler.Renderer, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	trackers := request.NewRegistry(logger.With("component", "request"))

	// A session's views forget their in-flight state when it ends.
	provider.OnSessionEnd(trackers.Drop)

	return &Server{
		provider:     provider,
		hub:          hub,
		trackers:     trackers,
		authH:        handler.NewAuthHandler(provider, backend, rd, opts.GoogleClientID, opts.SessionTTL, logger.With("component", "auth")),
		dashboardH:   handler.NewDashboardHandler(backend, trackers, rd, logger.With("component", "dashboard")),
		serviceTypeH: handler.NewServiceTypeHandler(backend, trackers, hub, rd, logger.With("component", "service_type")),
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no session required)
	outerMux.HandleFunc("GET /login", s.authH.LoginPage)
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /logout", s.authH.Logout)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// The socket runs its own guard so a signed-out tab can be told to navigate.
	outerMux.HandleFunc("GET /ws", ws.HandleSessionEvents(s.hub, s.provider, s.logger.With("component", "session_events")))

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	requireSession := middleware.RequireSession(s.provider, s.logger.With("component", "guard"))
	outerMux.Handle("/", requireSession(protectedMux))

	logged := middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
	return middleware.RequestID(logged)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute, s.logger)(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", s.dashboardH.Home)

	// Upload views
	mux.HandleFunc("GET /hitung-pendapatan", s.dashboardH.RevenuePage)
	mux.HandleFunc("POST /hitung-pendapatan", s.dashboardH.UploadRevenue)
	mux.HandleFunc("GET /hitung-bahanbaku-artha", s.dashboardH.MaterialsPage)
	mux.HandleFunc("POST /hitung-bahanbaku-artha", s.dashboardH.UploadMaterials)
	mux.HandleFunc("GET /hitung-bonus", s.dashboardH.BonusPage)
	mux.HandleFunc("POST /hitung-bonus", s.dashboardH.UploadBonus)

	// Service types
	mux.HandleFunc("GET /tipe-layanan", s.serviceTypeH.List)
	mux.HandleFunc("POST /tipe-layanan", s.serviceTypeH.Save)
	mux.HandleFunc("POST /tipe-layanan/{id}/delete", s.serviceTypeH.Delete)
}
