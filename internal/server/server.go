// Package server is the composition root: it opens the database and image
// store, builds services and handlers, and runs the HTTP server.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  → repository.Store (sqlite or postgres)   → services → handlers
//	  → storage.Storage (local, minio or gcs)   ↗
//	  → auth.TokenService → auth.Gate            → handler.Mount
//
// Each layer only receives what it needs: services get repository interfaces,
// handlers get services, and nothing below this package knows which backend
// was chosen.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/hospital-directory/internal/auth"
	"github.com/sakif/hospital-directory/internal/config"
	"github.com/sakif/hospital-directory/internal/handler"
	"github.com/sakif/hospital-directory/internal/metrics"
	"github.com/sakif/hospital-directory/internal/middleware"
	"github.com/sakif/hospital-directory/internal/repository"
	"github.com/sakif/hospital-directory/internal/repository/postgres"
	sqliteRepo "github.com/sakif/hospital-directory/internal/repository/sqlite"
	"github.com/sakif/hospital-directory/internal/service"
	"github.com/sakif/hospital-directory/internal/storage"
)

const shutdownTimeout = 30 * time.Second

// Deps are the external resources a Server is built on. New opens them from
// config; tests build them directly.
type Deps struct {
	Store  repository.Store
	Images *storage.Storage
	Google *auth.GoogleProvider // nil disables Google sign-in
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store and the login rate limiter. Close releases both;
// Start calls it once the HTTP server has drained.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	store    repository.Store
	limiter  *middleware.RateLimiter
	registry *prometheus.Registry
}

// New opens the configured database, image store and Google provider and
// builds a Server on them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	images, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening image storage: %w", err)
	}
	if err := images.EnsureBucket(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("preparing bucket %s: %w", images.Bucket(), err)
	}

	var google *auth.GoogleProvider
	if cfg.Google.Enabled() {
		google, err = auth.NewGoogleProvider(ctx, cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("configuring google sign-in: %w", err)
		}
	} else {
		logger.Warn("GOOGLE_CLIENT_ID not set, Google sign-in is disabled")
	}

	s, err := NewWithDeps(cfg, logger, Deps{Store: store, Images: images, Google: google})
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

// OpenStore connects to the database selected by cfg.Driver and brings its
// schema up to date.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		if err := postgres.RunMigrations(cfg.URL); err != nil {
			return nil, err
		}
		return postgres.Open(ctx, cfg.URL)
	case config.DriverSQLite, "":
		if cfg.Path != ":memory:" {
			dir := filepath.Dir(cfg.Path)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		return sqliteRepo.New(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// NewWithDeps wires services, handlers and middleware on already opened
// resources. The Server takes ownership of deps.Store.
func NewWithDeps(cfg *config.Config, logger *slog.Logger, deps Deps) (*Server, error) {
	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		store:    deps.Store,
		registry: prometheus.NewRegistry(),
	}

	if err := s.setupRoutes(deps); err != nil {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// setupRoutes configures middleware and mounts the route table.
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID, RealIP: tag the request and resolve the client address
//  2. Recovery: a panic anywhere below becomes a 500 envelope
//  3. SecurityHeaders, CORS: answer preflights before any routing work
//  4. Metrics, Logger: observe the final status of every request
func (s *Server) setupRoutes(deps Deps) error {
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(s.registry)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.CORS(s.config.CORSOrigin))
	s.router.Use(middleware.Metrics(collector))
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
	if err != nil {
		return err
	}
	passwords := auth.NewPasswordService(s.config.Auth.BcryptCost)

	policy, err := service.ParseOwnershipPolicy(s.config.OwnershipPolicy)
	if err != nil {
		return err
	}

	// Typed nil pointers must not leak into the interfaces below, or the
	// "disabled" checks would see a non-nil value.
	var (
		verifier   service.GoogleVerifier
		redirector handler.GoogleRedirector
	)
	if deps.Google != nil {
		verifier, redirector = deps.Google, deps.Google
	}

	store := deps.Store
	users := service.NewUserService(store, passwords, deps.Images, s.logger)
	h := handler.Handlers{
		Users:     handler.NewUserHandler(users, s.logger),
		Hospitals: handler.NewHospitalHandler(service.NewHospitalService(store, deps.Images, policy, s.logger)),
		Doctors:   handler.NewDoctorHandler(service.NewDoctorService(store, store, deps.Images, policy, s.logger)),
		Login:     handler.NewLoginHandler(service.NewAuthService(store, tokens, passwords, verifier, s.logger), redirector, s.logger),
		Search:    handler.NewSearchHandler(service.NewSearchService(store, store, store)),
		Upload: handler.NewUploadHandler(
			service.NewUploadService(store, store, store, deps.Images, collector, s.logger),
			s.config.Storage.UploadMaxBytes,
			s.logger,
		),
		Images: handler.NewImageHandler(deps.Images, s.logger),
	}

	s.limiter = middleware.NewRateLimiter(middleware.LoginRateLimiterConfig(s.config.LoginRatePerMin), s.logger)
	s.limiter.OnLimited = collector.LoginRateLimited

	gate := auth.NewGate(tokens, s.logger)
	if err := handler.Mount(s.router, gate, handler.Routes(h), s.limiter.Middleware()); err != nil {
		return err
	}

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler(s.registry))
	return nil
}

// handleHealth reports whether the database answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"ok":false}`))
		return
	}
	_, _ = w.Write([]byte(`{"ok":true}`))
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops the rate limiter and closes the database.
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.store.Close()
}

// Start serves HTTP until ctx is cancelled or SIGINT/SIGTERM arrives, then
// shuts down gracefully:
//  1. stop accepting new connections
//  2. wait up to 30s for in-flight requests
//  3. close the store
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("database", s.config.Database.Driver),
			slog.String("storage", s.config.Storage.Backend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
