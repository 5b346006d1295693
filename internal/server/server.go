package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/idhub/authserver/config"
	"github.com/idhub/authserver/internal/db"
	"github.com/idhub/authserver/internal/handlers"
	"github.com/idhub/authserver/internal/mail"
	"github.com/idhub/authserver/internal/mq"
	"github.com/idhub/authserver/internal/oauth"
	"github.com/idhub/authserver/internal/otp"
	"github.com/idhub/authserver/internal/services"
	"github.com/idhub/authserver/internal/storage"
	"github.com/idhub/authserver/internal/store"
	"github.com/idhub/authserver/internal/token"
)

// Server wraps the HTTP server and its shared resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      mq.Backend
}

// New constructs a Server: database, queue, storage, services, routes.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queue, err := mq.New(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	var avatars storage.ObjectStorage
	if cfg.Storage.Backend != "none" {
		avatars, err = storage.New(ctx, cfg)
		if err != nil {
			_ = queue.Close()
			_ = dbConn.Close()
			return nil, err
		}
		if err := avatars.EnsureBucket(ctx); err != nil {
			_ = queue.Close()
			_ = dbConn.Close()
			return nil, err
		}
	}

	accountRepo := store.NewAccountRepository(dbConn)
	accountService := services.NewAccountService(accountRepo)

	issuer := token.NewIssuer(cfg.JWT.Secret, cfg.JWT.TTL)
	otpManager := otp.NewManager(cfg.OTP.TTL, cfg.OTP.Length)
	mailer := mail.NewQueueSender(queue, cfg.MQ.MailQueue)

	providers := map[string]oauth.Provider{}
	if cfg.OAuth.Google.ClientID != "" {
		google := oauth.NewGoogleProvider(cfg.OAuth.Google)
		providers[google.Name()] = google
	}
	if cfg.OAuth.Github.ClientID != "" {
		github := oauth.NewGithubProvider(cfg.OAuth.Github)
		providers[github.Name()] = github
	}

	authService := services.NewAuthService(
		accountRepo,
		otpManager,
		issuer,
		mailer,
		providers,
		cfg.IsProduction(),
	)

	authMiddleware := handlers.RequireAuth(issuer, accountService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, authMiddleware)
	})
	router.Route("/account", func(r chi.Router) {
		handlers.AccountRouter(r, accountService, avatars, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
