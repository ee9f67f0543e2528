package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/nano-social/backend/internal/handlers"
	"github.com/anonto42/nano-social/backend/internal/metrics"
	"github.com/anonto42/nano-social/backend/internal/router"
	"github.com/anonto42/nano-social/backend/pkg/cache"
	"github.com/anonto42/nano-social/backend/pkg/config"
	"github.com/anonto42/nano-social/backend/pkg/firebase"
	"github.com/anonto42/nano-social/backend/pkg/logger"
	"github.com/anonto42/nano-social/backend/pkg/storage"
	"github.com/anonto42/nano-social/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	baseLog := logger.New(cfg.Env, cfg.LogLevel)
	appLog := logger.Component(baseLog, "server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(cfg, logger.Component(baseLog, "database"))
	if err != nil {
		appLog.WithError(err).Fatal("Failed to initialize databases")
	}
	defer db.CloseDB()

	deps := router.Dependencies{
		Config:   cfg,
		Postgres: db.Postgres,
		Mongo:    db.Mongo.Database(cfg.MongoDatabase),
		Log:      baseLog,
	}

	// Optional integrations
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			appLog.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisClient.Close()
		deps.Redis = redisClient
	}

	if cfg.FirebaseCredentialsPath != "" {
		firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			appLog.WithError(err).Warn("Firebase disabled")
		} else {
			deps.Firebase = firebaseApp
		}
	} else {
		appLog.Warn("FIREBASE_CREDENTIALS_PATH not set, Firebase login and push are disabled")
	}

	if cfg.MinioEndpoint != "" {
		store, err := storage.NewMediaStore(ctx, storage.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MediaPublicURL,
		})
		if err != nil {
			appLog.WithError(err).Warn("Media uploads disabled")
		} else {
			deps.Media = store
		}
	} else {
		appLog.Warn("MINIO_ENDPOINT not set, media uploads are disabled")
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = handlers.ErrorHandler(logger.Component(baseLog, "http"))

	// Setup global middleware
	config.SetupMiddleware(e, logger.Component(baseLog, "http"), metrics.Middleware())

	// Setup routes and dependencies
	app, err := router.SetupRoutes(ctx, e, deps)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to set up routes")
	}

	go app.Hub.Run(ctx)
	for _, limiter := range app.RateLimiters {
		limiter.StartCleanup(time.Minute, ctx.Done())
	}
	sweeper, err := app.Presence.StartSweeper(cfg.PresenceSweepSpec)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to start presence sweeper")
	}
	defer sweeper.Stop()

	metricsServer := router.MetricsServer()
	go func() {
		if err := metricsServer.Start(":" + cfg.MetricsPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.WithError(err).Error("metrics server stopped")
		}
	}()

	// Start server
	go func() {
		appLog.WithField("port", cfg.Port).Info("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("server shutdown failed")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("metrics server shutdown failed")
	}
}
