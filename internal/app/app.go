// Package app wires configuration, infrastructure and services for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kol-campaign-api-server/config"
	"kol-campaign-api-server/internal/api/handlers"
	"kol-campaign-api-server/internal/api/routes"
	"kol-campaign-api-server/internal/auth"
	"kol-campaign-api-server/internal/cache"
	"kol-campaign-api-server/internal/database"
	"kol-campaign-api-server/internal/mailer"
	"kol-campaign-api-server/internal/metrics"
	"kol-campaign-api-server/internal/models"
	"kol-campaign-api-server/internal/queue"
	"kol-campaign-api-server/internal/ratelimit"
	"kol-campaign-api-server/internal/s3"
	"kol-campaign-api-server/internal/service"
	"kol-campaign-api-server/internal/socket"
	"kol-campaign-api-server/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Options select how jobs leave the process.
type Options struct {
	// AsyncInline runs in-process email jobs on goroutines instead of inside the request.
	AsyncInline bool
	// WithHub creates the websocket hub used by the API server.
	WithHub bool
}

type App struct {
	Config   config.Config
	Log      *zap.Logger
	Mongo    *mongo.Client
	Redis    *redis.Client
	Store    *store.Store
	Services *service.Services
	Tokens   *auth.TokenManager
	Limiter  ratelimit.Limiter
	Metrics  *metrics.Metrics
	Hub      *socket.Hub

	publisher *queue.AMQPPublisher
	inline    *queue.Inline
}

// New connects to MongoDB and the optional Redis, RabbitMQ and S3 backends and
// builds the services on top of them.
func New(ctx context.Context, cfg config.Config, log *zap.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Log: log, Metrics: metrics.New()}

	client, db, err := database.Connect(ctx, cfg.Mongo)
	if err != nil {
		return nil, err
	}
	a.Mongo = client
	a.Store = store.NewMongo(db)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	if a.Tokens, err = auth.NewTokenManager(cfg.JWT); err != nil {
		a.Close(ctx)
		return nil, err
	}

	var c cache.Cache = cache.Nop{}
	a.Limiter = ratelimit.AllowAll{}
	if cfg.Redis.Enabled() {
		if a.Redis, err = cache.NewRedisClient(ctx, cfg.Redis); err != nil {
			a.Close(ctx)
			return nil, err
		}
		c = cache.NewRedisCache(a.Redis, "kol:")
		a.Limiter = ratelimit.NewRedisLimiter(a.Redis, "kol:rl:")
		log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	} else {
		log.Warn("redis not configured, caching and rate limiting disabled")
	}

	deps := service.Deps{
		Store:     a.Store,
		Tokens:    a.Tokens,
		Limiter:   a.Limiter,
		Cache:     c,
		CacheTTL:  cfg.Redis.CacheTTL,
		Metrics:   a.Metrics,
		Log:       log,
		Defaults:  defaultSettings(cfg),
		NewSender: func(es models.EmailSettings) mailer.Sender { return mailer.NewSMTPSender(es) },
	}
	if opts.WithHub {
		a.Hub = socket.NewHub(log)
		deps.Events = a.Hub
	}

	if cfg.S3.Enabled() {
		up, err := s3.NewUploader(ctx, cfg.S3)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		deps.Uploader = up
	}

	if cfg.RabbitMQ.Enabled() {
		if a.publisher, err = queue.NewAMQPPublisher(cfg.RabbitMQ); err != nil {
			a.Close(ctx)
			return nil, err
		}
		deps.Publisher = a.publisher
		log.Info("email jobs go to rabbitmq", zap.String("exchange", cfg.RabbitMQ.Exchange))
	} else {
		// the handler needs the services, which need the publisher
		a.inline = queue.NewInline(func(ctx context.Context, job models.EmailJob) error {
			return a.Services.Notifications.Deliver(ctx, job)
		}, log, opts.AsyncInline)
		deps.Publisher = a.inline
		log.Warn("rabbitmq not configured, email jobs run in-process")
	}

	a.Services = service.New(deps)
	return a, nil
}

// defaultSettings overlays the mail and survey config on the built-in defaults.
func defaultSettings(cfg config.Config) models.Settings {
	d := models.DefaultSettings()
	if cfg.Mail.Host != "" {
		d.Email.SMTPHost = cfg.Mail.Host
	}
	if cfg.Mail.Port != 0 {
		d.Email.SMTPPort = cfg.Mail.Port
	}
	d.Email.SMTPUsername = cfg.Mail.Username
	d.Email.SMTPPassword = cfg.Mail.Password
	if cfg.Mail.FromAddress != "" {
		d.Email.FromAddress = cfg.Mail.FromAddress
	}
	if cfg.Mail.FromName != "" {
		d.Email.FromName = cfg.Mail.FromName
	}
	if cfg.Survey.BaseURL != "" {
		d.System.SurveyBaseURL = cfg.Survey.BaseURL
	}
	if ttl, err := cfg.JWT.TTL(); err == nil && ttl >= 5*time.Minute && ttl <= 7*24*time.Hour {
		d.Security.SessionTimeoutMinutes = int(ttl / time.Minute)
	}
	return d
}

// Seed creates the superadmin and the default disease areas when missing.
func (a *App) Seed(ctx context.Context) error {
	if _, err := database.SeedSuperAdmin(ctx, a.Store.Users, a.Config.Seed, a.Log); err != nil {
		return fmt.Errorf("seed super admin: %w", err)
	}
	if _, err := database.SeedDiseaseAreas(ctx, a.Store.DiseaseAreas, a.Log); err != nil {
		return fmt.Errorf("seed disease areas: %w", err)
	}
	return nil
}

// Router builds the HTTP API.
func (a *App) Router() *gin.Engine {
	checks := map[string]handlers.Check{
		"mongo": func(ctx context.Context) error { return a.Mongo.Ping(ctx, readpref.Primary()) },
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	return routes.SetupRouter(routes.Deps{
		Config:   a.Config,
		Services: a.Services,
		Tokens:   a.Tokens,
		Hub:      a.Hub,
		Metrics:  a.Metrics,
		Limiter:  a.Limiter,
		Checks:   checks,
		Log:      a.Log,
	})
}

// Close waits for in-process jobs and releases every connection.
func (a *App) Close(ctx context.Context) {
	if a.inline != nil {
		a.inline.Wait()
	}
	if a.Hub != nil {
		a.Hub.CloseAll()
	}
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Mongo != nil {
		errs = append(errs, a.Mongo.Disconnect(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.Log.Warn("error while closing connections", zap.Error(err))
	}
}
