// Package server wires handlers, middleware, and routes, and owns the
// HTTP server lifecycle.
//
// This is the composition root: every dependency chain is assembled in
// New, each layer receiving only what it needs — services get repository
// interfaces, handlers get services, nothing reaches around a layer.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/swarm-relay/internal/auth"
	"github.com/sakif/swarm-relay/internal/config"
	"github.com/sakif/swarm-relay/internal/handler"
	"github.com/sakif/swarm-relay/internal/metrics"
	"github.com/sakif/swarm-relay/internal/middleware"
	"github.com/sakif/swarm-relay/internal/notify"
	sqliteRepo "github.com/sakif/swarm-relay/internal/repository/sqlite"
	"github.com/sakif/swarm-relay/internal/service"
)

// Server holds the router and the resources it must release on shutdown.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	states *auth.StateStore
}

// New assembles the full dependency graph and route table.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
		states: auth.NewStateStore(logger),
	}
	s.setupRoutes(tokens)
	return s, nil
}

// setupRoutes configures middleware and the route table.
//
// ROUTE STRUCTURE:
//
//	GET  /                        → service banner
//	POST /webhook/checkin         → check-in ingress (always 200)
//	GET  /webhook/health          → health (degrades, never 5xx)
//	GET  /auth/discord/login      → 302 to Discord (rate limited)
//	GET  /auth/discord/callback   → completes login, sets session cookie
//	GET  /auth/swarm/login        → 302 to Foursquare (session + rate limited)
//	GET  /auth/swarm/callback     → completes linkage (session required)
//	POST /auth/logout             → clears the session cookie
//	GET  /users/@me               → profile (session required)
//	POST /users/@me/disconnect    → unlink Swarm (session required)
//	GET  /metrics                 → Prometheus
func (s *Server) setupRoutes(tokens *auth.TokenService) {
	collector := metrics.NewCollector()

	// Global middleware, in order: request IDs for correlation, real
	// client IPs from proxy headers, our slog logger, panic recovery.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// === Providers and services ===
	discord := auth.NewDiscordProvider(
		s.cfg.DiscordClientID,
		s.cfg.DiscordClientSecret,
		s.cfg.DiscordRedirectURL(),
	)
	foursquare := auth.NewFoursquareProvider(
		s.cfg.FoursquareClientID,
		s.cfg.FoursquareClientSecret,
		s.cfg.FoursquareRedirectURL(),
	)

	dispatcher := notify.NewDispatcher(s.cfg.DiscordWebhookURL,
		s.logger.With(slog.String("component", "dispatcher")), collector)
	webhookService := service.NewWebhookService(
		s.db,
		dispatcher,
		s.cfg.FoursquarePushSecret,
		s.cfg.DebugFoursquareUserID,
		collector,
		s.logger.With(slog.String("component", "webhook")),
	)
	authService := service.NewAuthService(
		discord,
		foursquare,
		s.db,
		s.states,
		tokens,
		s.cfg.DiscordTargetServerID,
		s.logger.With(slog.String("component", "auth")),
	)

	webhookHandler := handler.NewWebhookHandler(webhookService, s.db, s.logger)
	authHandler := handler.NewAuthHandler(authService, s.cfg.IsProduction(), s.logger)
	userHandler := handler.NewUserHandler(authService, s.logger)

	// Login initiation is rate limited per IP: each hit allocates an
	// OAuth state in memory.
	loginLimiter := middleware.NewRateLimiter(1, 5, s.logger)

	// === Routes ===
	s.router.Get("/", handler.HandleRoot)
	s.router.Method(http.MethodGet, "/metrics", collector.Handler())

	s.router.Route("/webhook", func(r chi.Router) {
		r.Post("/checkin", webhookHandler.HandleCheckin)
		r.Get("/health", webhookHandler.HandleHealth)
	})

	s.router.Route("/auth", func(r chi.Router) {
		r.With(loginLimiter.Handler).Get("/discord/login", authHandler.HandleDiscordLogin)
		r.Get("/discord/callback", authHandler.HandleDiscordCallback)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(tokens))
			r.With(loginLimiter.Handler).Get("/swarm/login", authHandler.HandleSwarmLogin)
			r.Get("/swarm/callback", authHandler.HandleSwarmCallback)
		})

		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/users", func(r chi.Router) {
		r.Use(auth.RequireSession(tokens))
		r.Get("/@me", userHandler.HandleMe)
		r.Post("/@me/disconnect", userHandler.HandleDisconnect)
	})
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests (30s),
// stop the state sweep, close the database.
func (s *Server) Start() error {
	defer s.db.Close()
	defer s.states.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("env", s.cfg.Env),
			slog.String("baseURL", s.cfg.BaseURL),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Router exposes the configured router for httptest-based endpoint tests.
func (s *Server) Router() http.Handler {
	return s.router
}
