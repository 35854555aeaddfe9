package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/inkpost/apiserver/config"
	"github.com/inkpost/apiserver/internal/db"
	"github.com/inkpost/apiserver/internal/handlers"
	"github.com/inkpost/apiserver/internal/logging"
	"github.com/inkpost/apiserver/internal/mq"
	"github.com/inkpost/apiserver/internal/services"
	"github.com/inkpost/apiserver/internal/storage"
	"github.com/inkpost/apiserver/internal/store"
	"github.com/rs/zerolog/log"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
}

// Deps are the backing services of the content backend.
type Deps struct {
	DB      *sql.DB
	Objects *storage.Storage
	// Queue may be nil.
	Queue *mq.MQ
}

// New connects to the configured database, bucket and broker and builds the
// server.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", objects.Bucket(), err)
	}

	queue, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if queue == nil {
		log.Warn().Msg("no message broker configured, recovery links will only be logged")
	}

	return NewWithDeps(cfg, Deps{DB: dbConn, Objects: objects, Queue: queue}), nil
}

// NewWithDeps builds the server on already opened dependencies.
func NewWithDeps(cfg config.Config, deps Deps) *Server {
	userRepo := store.NewUserRepository(deps.DB)
	sessionRepo := store.NewSessionRepository(deps.DB)
	postRepo := store.NewPostRepository(deps.DB)
	fileRepo := store.NewFileRepository(deps.DB)

	opts := services.AccountOptions{
		SessionTTL:  cfg.Auth.TokenTTL,
		RecoveryTTL: cfg.Auth.RecoveryTTL,
	}
	if deps.Queue != nil {
		opts.Publisher = deps.Queue
	}
	accountService := services.NewAccountService(userRepo, sessionRepo, fileRepo, opts)
	userService := services.NewUserService(userRepo)
	postService := services.NewPostService(postRepo, fileRepo)
	fileService := services.NewFileService(fileRepo, deps.Objects)

	authMiddleware := handlers.RequireAuth(accountService, cfg.Auth.JWTSecret)

	router := chi.NewRouter()
	router.Use(logging.Middleware(log.Logger)...)
	router.Use(
		middleware.RealIP,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"https://*", "http://*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/account", func(r chi.Router) {
		handlers.AccountRouter(r, accountService, cfg.Auth.JWTSecret, handlers.NewGoogleOAuth(cfg.OAuth))
	})
	router.Route("/posts", func(r chi.Router) {
		handlers.PostRouter(r, postService, userService, authMiddleware)
	})
	router.Route("/files", func(r chi.Router) {
		handlers.FileRouter(r, fileService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         deps.DB,
		queue:      deps.Queue,
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("content backend listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes the backing connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
