// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"kol-campaign-api-server/config"
	"kol-campaign-api-server/internal/app"
	"kol-campaign-api-server/internal/logger"
	"kol-campaign-api-server/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load configuration; a .env file is optional
	_ = godotenv.Load()
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Could not build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	if err := validation.RegisterGin(); err != nil {
		zl.Fatal("register validators", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Connect backends and build services
	a, err := app.New(ctx, cfg, zl, app.Options{AsyncInline: true, WithHub: true})
	if err != nil {
		zl.Fatal("failed to initialise application", zap.Error(err))
	}
	if err := a.Seed(ctx); err != nil {
		zl.Error("seeding failed", zap.Error(err))
	}

	// 3. Start server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("starting API server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		zl.Info("shutting down API server")
		err := srv.Shutdown(shutdownCtx)
		a.Close(shutdownCtx)
		return err
	})

	if err := g.Wait(); err != nil {
		zl.Error("server stopped with error", zap.Error(err))
	}
}
