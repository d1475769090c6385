package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/moneybookapp/moneybook/internal/db"
	"github.com/moneybookapp/moneybook/internal/handlers"
	"github.com/moneybookapp/moneybook/internal/handlers/middleware"
	"github.com/moneybookapp/moneybook/internal/idtoken"
	"github.com/moneybookapp/moneybook/internal/logger"
	"github.com/moneybookapp/moneybook/internal/models"
	"github.com/moneybookapp/moneybook/internal/repository/postgres"
	"github.com/moneybookapp/moneybook/internal/service/auth"
	"github.com/moneybookapp/moneybook/internal/service/auth/tokenmanager"
	"github.com/moneybookapp/moneybook/internal/service/user"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
}

func NewServerApp(ctx context.Context) (*ServerApp, error) {
	// Load config: defaults, then .env, env and flags
	c := NewConfig()
	if err := c.LoadDotEnv(os.Getwd); err != nil {
		return nil, fmt.Errorf("error while reading .env file. Err: %w", err)
	}
	c.LoadEnv(os.Getenv)
	if err := c.ParseFlags(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("error while parsing flags. Err: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config is not valid. Err: %w", err)
	}

	return newServerApp(ctx, c)
}

func newServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	userRepo := &postgres.UserRepo{DB: pool}
	refreshRepo := &postgres.RefreshTokenRepo{DB: pool}

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	keySource := idtoken.NewRemoteKeySource(c.KakaoJWKSURL, nil)
	verifier, err := idtoken.NewVerifier(idtoken.Config{
		Provider: models.ProviderKakao,
		Issuer:   c.KakaoIssuer,
		ClientID: c.KakaoClientID,
	}, keySource)
	if err != nil {
		return nil, fmt.Errorf("error while creating id token verifier. Err: %w", err)
	}

	userService := user.NewService(userRepo)
	authService, err := auth.NewService(tokenManager, verifier, userService, refreshRepo)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	// Initialize handlers
	authHandler := handlers.NewAuth(authService, log)
	userHandler := handlers.NewUser()
	authMiddleware := middleware.AuthMiddleware(authService)

	mux := handlers.NewRouter(
		authHandler,
		userHandler,
		authMiddleware,
		middleware.LoggerMiddleware(log),
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server")
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
