// cmd/worker/main.go consumes email jobs from RabbitMQ.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"kol-campaign-api-server/config"
	"kol-campaign-api-server/internal/app"
	"kol-campaign-api-server/internal/logger"
	"kol-campaign-api-server/internal/queue"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if !cfg.RabbitMQ.Enabled() {
		log.Fatal("rabbitmq.url (RABBITMQ_URL) must be set to run the worker")
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Could not build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl, app.Options{})
	if err != nil {
		zl.Fatal("failed to initialise application", zap.Error(err))
	}
	defer a.Close(context.Background())

	consumer, err := queue.NewAMQPConsumer(cfg.RabbitMQ, zl)
	if err != nil {
		zl.Fatal("failed to connect consumer", zap.Error(err))
	}
	defer consumer.Close()

	zl.Info("email worker started", zap.String("queue", cfg.RabbitMQ.Queue), zap.Int("prefetch", cfg.RabbitMQ.Prefetch))
	if err := consumer.Run(ctx, a.Services.Notifications.Deliver); err != nil && ctx.Err() == nil {
		zl.Error("consumer stopped", zap.Error(err))
	}
	zl.Info("email worker stopped")
}
