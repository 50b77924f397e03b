package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatgrid/chat-service/config"
	"github.com/chatgrid/chat-service/internal/postgres"
	"github.com/chatgrid/chat-service/internal/security"
	"github.com/chatgrid/chat-service/internal/service"
	httpx "github.com/chatgrid/chat-service/internal/transport/http"
	"github.com/chatgrid/chat-service/internal/transport/ws"
	"github.com/chatgrid/chat-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Postgres.ToPGConfig())
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	// --- repos ---
	userRepo := postgres.NewUserRepository(db.Pool)
	roomRepo := postgres.NewRoomRepository(db.Pool)
	membershipRepo := postgres.NewMembershipRepository(db.Pool)
	messageRepo := postgres.NewMessageRepository(db.Pool)

	// --- services ---
	signer := security.NewJWTSigner(
		[]byte(cfg.Security.JWT.Secret),
		cfg.Security.JWT.Issuer,
		cfg.Security.JWT.Audience,
		cfg.Security.JWT.AccessTTL,
		cfg.Security.JWT.ClockSkew,
	)
	authSvc := service.NewAuthService(userRepo, signer, security.BcryptConfig{
		Cost:      cfg.Security.Password.BcryptCost,
		MinLength: cfg.Security.Password.MinLength,
	}, nil)
	roomSvc := service.NewRoomService(roomRepo, membershipRepo)
	msgSvc := service.NewMessageService(messageRepo, membershipRepo)

	// --- WS registry & server ---
	registry := ws.NewRegistry()
	wsServer := ws.NewServer(registry, authSvc, roomSvc, msgSvc, ws.Options{
		PingInterval:   cfg.WS.PingInterval,
		MaxMessageSize: cfg.WS.MaxMessageSize,
	})

	// --- HTTP ---
	handler := httpx.NewHandler(authSvc, roomSvc, msgSvc)
	router := httpx.NewRouter(handler, authSvc, wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
