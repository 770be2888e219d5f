package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/swuota-server/swuota-server/internal/auth"
	"github.com/swuota-server/swuota-server/internal/config"
	"github.com/swuota-server/swuota-server/internal/dm"
	"github.com/swuota-server/swuota-server/internal/storage"
)

// Server serves the device-facing DM endpoint, the enrollment info page and
// the JWT-protected ops API on one listener.
type Server struct {
	config *config.Config
	engine *dm.Engine
	store  storage.Store
	auth   *auth.JWTManager
	router chi.Router
	server *http.Server

	infoPage []byte
}

// NewServer creates the HTTP server around an engine and event store.
func NewServer(cfg *config.Config, engine *dm.Engine, store storage.Store) *Server {
	s := &Server{
		config: cfg,
		engine: engine,
		store:  store,
		auth:   auth.NewJWTManager(&cfg.JWT),
		router: chi.NewRouter(),
	}

	s.loadInfoPage()
	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	// Device-facing endpoints. No timeout middleware here: a slow handset
	// upload is bounded by the body limit, not wall clock.
	s.router.Post("/", s.HandleDMMessage)
	s.router.Get("/", s.HandleInfoPage)
	s.router.Get("/error*", s.HandleErrorRedirect)

	// Ops API
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Logger)
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		s.setupAPIRoutes(r)
	})
}

// setupAPIRoutes sets up ops API v1 routes
func (s *Server) setupAPIRoutes(r chi.Router) {
	r.Get("/health", s.HandleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.HandleListSessions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetSession)
				r.Delete("/", s.HandleDeleteSession)
				r.Post("/discover", s.HandleStartDiscovery)
			})
		})

		r.Get("/events", s.HandleListEvents)
	})
}

// ListenAndServe starts the server
func (s *Server) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("Starting DM server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// authMiddleware is the ops API authentication middleware
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		claims, err := s.auth.ValidateToken(parts[1])
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type claimsContextKey struct{}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
