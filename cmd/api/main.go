package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"zamanyonet-admin/internal/accounts"
	"zamanyonet-admin/internal/app"
	"zamanyonet-admin/internal/auth"
	"zamanyonet-admin/internal/config"
	"zamanyonet-admin/internal/resource"
	"zamanyonet-admin/pkg/logger"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("dotenv load failed", "err", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	deps, err := app.Open(rootCtx, cfg, log)
	if err != nil {
		log.Error("infrastructure init failed", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	tokens, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}
	hasher := auth.NewPasswordHasher(bcrypt.DefaultCost)

	usersDef := accounts.Users(hasher)
	users, err := resource.NewGateway(deps.Backend(), usersDef)
	if err != nil {
		log.Error("users gateway init failed", "err", err)
		os.Exit(1)
	}
	authSvc := auth.NewService(accounts.NewDirectory(users), deps.Sessions(), tokens, hasher, deps.Audit, log.With("component", "auth"))

	// Gin router
	r := gin.New()
	r.Use(logger.Middleware(log))
	r.Use(logger.Recovery())

	if err := registerRoutes(r, deps, authSvc, usersDef, users); err != nil {
		log.Error("route setup failed", "err", err)
		os.Exit(1)
	}

	if email := cfg.Auth.BootstrapAdminEmail; email != "" {
		created, err := accounts.EnsureAdmin(rootCtx, users, email, cfg.Auth.BootstrapAdminPassword)
		if err != nil {
			log.Error("bootstrap admin failed", "err", err)
			os.Exit(1)
		}
		if created {
			log.Info("bootstrap admin created", "email", email)
		}
	}

	// The relay runs alongside the API; the lease keeps replicas from
	// publishing concurrently.
	relayDone := make(chan struct{})
	if relay := deps.Relay(); relay != nil {
		go func() {
			defer close(relayDone)
			_ = relay.Run(rootCtx)
		}()
	} else {
		close(relayDone)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "storage", cfg.Storage.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	select {
	case <-relayDone:
	case <-shutdownCtx.Done():
		log.Warn("outbox relay did not stop in time")
	}
}
