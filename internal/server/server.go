// Package server wires the application together: router, middleware,
// handlers, the document-store backend and the change-feed syncer. It is
// the composition root; main.go only loads config and calls Start.
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

	"github.com/elizaveta-sm/pin-it-up/internal/auth"
	"github.com/elizaveta-sm/pin-it-up/internal/config"
	"github.com/elizaveta-sm/pin-it-up/internal/content"
	"github.com/elizaveta-sm/pin-it-up/internal/engine"
	"github.com/elizaveta-sm/pin-it-up/internal/handler"
	"github.com/elizaveta-sm/pin-it-up/internal/middleware"
	sqliteRepo "github.com/elizaveta-sm/pin-it-up/internal/repository/sqlite"
	"github.com/elizaveta-sm/pin-it-up/internal/search"
	"github.com/elizaveta-sm/pin-it-up/internal/state"
)

// Server owns the router and every long-lived resource: the SQLite
// database, the document store and the feed syncer. Start runs until a
// shutdown signal and releases them in order.
type Server struct {
	cfg    *config.Properties
	router *chi.Mux
	logger *slog.Logger

	db     *sqliteRepo.DB
	store  content.Store
	state  *state.Store
	syncer *state.Syncer
}

// New assembles the full dependency graph. Each layer receives only the
// interfaces it consumes; nothing below the handlers knows about HTTP.
func New(cfg *config.Properties, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store, err := newContentStore(cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	provider := auth.NewLocalProvider(db, auth.NewPasswordService())

	var google *auth.GoogleProvider
	if cfg.Auth.GoogleID != "" {
		google = auth.NewGoogleProvider(cfg.Auth.GoogleID, cfg.Auth.GoogleSecret, cfg.Auth.GoogleRedirect)
	}

	eng := engine.New(store, provider, logger)
	recommender := search.NewRecommender(store)

	st := state.NewStore()
	state.RestoreSnapshot(context.Background(), st, db, logger)
	syncer := state.NewSyncer(store, st, recommender, db, logger)

	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		logger: logger,
		db:     db,
		store:  store,
		state:  st,
		syncer: syncer,
	}
	s.setupRoutes(eng, provider, google, tokens, recommender)
	return s, nil
}

// newContentStore picks the backend: the HTTP client when a base URL is
// configured, otherwise the in-memory store for tokenless local runs.
func newContentStore(cfg *config.Properties, logger *slog.Logger) (content.Store, error) {
	if cfg.Content.BaseURL == "" {
		logger.Warn("CONTENT_BASE_URL not set, using the in-memory store")
		return content.NewMemStore(), nil
	}
	client, err := content.NewClient(content.ClientConfig{
		BaseURL: cfg.Content.BaseURL,
		Dataset: cfg.Content.Dataset,
		Token:   cfg.Content.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("creating content client: %w", err)
	}
	return client, nil
}

func (s *Server) setupRoutes(
	eng *engine.Engine,
	provider auth.Provider,
	google *auth.GoogleProvider,
	tokens *auth.TokenService,
	recommender *search.Recommender,
) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	authHandler := handler.NewAuthHandler(eng, provider, google, tokens, s.store, s.state, s.db, s.cfg.Auth.TokenTTL, s.logger)
	pinHandler := handler.NewPinHandler(eng, s.store, s.state, recommender, s.logger)
	userHandler := handler.NewUserHandler(eng, provider, s.store, s.state, s.db, s.logger)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignUp)
		r.Post("/signin", authHandler.HandleSignIn)
		r.Post("/signout", authHandler.HandleSignOut)
		if google != nil {
			r.Get("/google/login", authHandler.HandleGoogleLogin)
			r.Get("/google/callback", authHandler.HandleGoogleCallback)
		}
	})

	s.router.Route("/api", func(r chi.Router) {
		// public reads; identity attached when a session is present
		r.Use(auth.OptionalAuth(tokens))

		r.Get("/pins", pinHandler.HandleFeed)
		r.Get("/pins/{id}", pinHandler.HandleGet)
		r.Get("/pins/{id}/related", pinHandler.HandleRelated)
		r.Get("/pins/{id}/comments", pinHandler.HandleListComments)
		r.Get("/categories", pinHandler.HandleCategories)
		r.Get("/search", pinHandler.HandleSearch)
		r.Get("/search/history", pinHandler.HandleSearchHistory)
		r.Get("/users/{id}", userHandler.HandleGetProfile)

		// session required
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", authHandler.HandleMe)
			r.Put("/me", userHandler.HandleUpdateProfile)
			r.Delete("/me", userHandler.HandleDeleteAccount)

			r.Post("/pins", pinHandler.HandleCreate)
			r.Delete("/pins/{id}", pinHandler.HandleDelete)
			r.Post("/pins/{id}/save", pinHandler.HandleSave)
			r.Delete("/pins/{id}/save", pinHandler.HandleUnsave)
			r.Post("/pins/{id}/comments", pinHandler.HandleAddComment)
			r.Delete("/pins/{id}/comments/{commentID}", pinHandler.HandleDeleteComment)
		})
	})
}

// Start primes the state cache, opens the change feed and serves HTTP
// until SIGINT/SIGTERM or a fatal error. Shutdown order: stop accepting
// requests, cancel the feed, close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.syncer.Prime(ctx); err != nil {
		// a cold cache is survivable; the feed fills it as events arrive
		s.logger.Warn("priming state cache failed", slog.String("error", err.Error()))
	}
	syncErrs, err := s.syncer.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting change feed: %w", err)
	}

	srv := &http.Server{
		Addr:         ":" + s.cfg.Server.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("port", s.cfg.Server.Port))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case err := <-syncErrs:
		if err != nil {
			return fmt.Errorf("change feed error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		// stop the feed and wait for the loop to drain
		cancel()
		<-syncErrs
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
