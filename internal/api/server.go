// Package api serves the local HTTP interface that UIs use to drive the
// session and the ticketing contracts.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/tixly/tixly/internal/config"
	"github.com/tixly/tixly/internal/contracts"
	"github.com/tixly/tixly/internal/logger"
	"github.com/tixly/tixly/internal/middleware"
)

// Deps are the collaborators the server routes to
type Deps struct {
	Sessions  SessionManager
	Profiles  ProfileService
	Contracts *contracts.Service
	Metrics   http.Handler
}

// Server represents the HTTP server
type Server struct {
	cfg          config.ServerConfig
	sessions     SessionManager
	profiles     ProfileService
	contracts    *contracts.Service
	metrics      http.Handler
	limiter      *middleware.RateLimiter
	writeTimeout time.Duration
	httpServer   *http.Server
}

// NewServer creates a new API server. writeTimeout must cover the longest
// blocking call (external handshake or receipt confirmation).
func NewServer(cfg config.ServerConfig, deps Deps, writeTimeout time.Duration) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}
	return &Server{
		cfg:          cfg,
		sessions:     deps.Sessions,
		profiles:     deps.Profiles,
		contracts:    deps.Contracts,
		metrics:      deps.Metrics,
		limiter:      middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimit),
		writeTimeout: writeTimeout,
	}
}

// Handler returns the routed handler wrapped in middleware:
// RequestID -> AccessLog -> RateLimit -> LimitBody -> routes
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/session", s.handleGetSession).Methods(http.MethodGet)
	v1.HandleFunc("/session", s.handleDisconnect).Methods(http.MethodDelete)
	v1.HandleFunc("/session/connect", s.handleConnect).Methods(http.MethodPost)
	v1.HandleFunc("/session/connect", s.handleCancelConnect).Methods(http.MethodDelete)
	v1.HandleFunc("/session/import", s.handleImport).Methods(http.MethodPost)
	v1.HandleFunc("/session/balance", s.handleRefreshBalance).Methods(http.MethodPost)

	v1.HandleFunc("/profile", s.handleGetProfile).Methods(http.MethodGet)
	v1.HandleFunc("/profile", s.handleRegister).Methods(http.MethodPut)
	v1.HandleFunc("/profile", s.handleUpdateProfile).Methods(http.MethodPatch)
	v1.HandleFunc("/profile", s.handleLogout).Methods(http.MethodDelete)

	v1.HandleFunc("/events", s.handleListEvents).Methods(http.MethodGet)
	v1.HandleFunc("/events", s.handleCreateEvent).Methods(http.MethodPost)
	v1.HandleFunc("/events/{id}", s.handleGetEvent).Methods(http.MethodGet)
	v1.HandleFunc("/events/{id}/tickets", s.handleBuyTickets).Methods(http.MethodPost)
	v1.HandleFunc("/events/{id}/transfers", s.handleTransferTickets).Methods(http.MethodPost)
	v1.HandleFunc("/events/{id}/favorite", s.handleGetFavorite).Methods(http.MethodGet)
	v1.HandleFunc("/events/{id}/favorite", s.handleFavorite).Methods(http.MethodPut)
	v1.HandleFunc("/events/{id}/favorite", s.handleUnfavorite).Methods(http.MethodDelete)
	v1.HandleFunc("/tickets", s.handleListTickets).Methods(http.MethodGet)
	v1.HandleFunc("/transactions/{hash}/confirm", s.handleConfirm).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	var h http.Handler = r
	h = middleware.LimitBody(middleware.DefaultMaxBodySize)(h)
	h = s.limiter.Limit(h)
	h = middleware.AccessLog(h)
	h = middleware.RequestID(h)
	return h
}

// Start serves until Shutdown is called
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	logger.Info(ctx, "starting server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
