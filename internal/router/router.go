package router

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anonto42/nano-social/backend/internal/handlers"
	"github.com/anonto42/nano-social/backend/internal/metrics"
	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/presence"
	"github.com/anonto42/nano-social/backend/internal/realtime"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/anonto42/nano-social/backend/pkg/config"
	"github.com/anonto42/nano-social/backend/pkg/firebase"
	"github.com/anonto42/nano-social/backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Dependencies are the connections and optional integrations the routes are built from.
// Redis, Firebase and Media may be nil.
type Dependencies struct {
	Config   *config.Config
	Postgres *gorm.DB
	Mongo    *mongo.Database
	Redis    *redis.Client
	Firebase *firebase.App
	Media    handlers.MediaUploader
	Log      *logrus.Logger
}

// App holds the long running pieces main has to start and stop
type App struct {
	Hub          *realtime.Hub
	Presence     *presence.Service
	RateLimiters []*middleware.RateLimiter
}

// Models lists every gorm model migrated at startup
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Follow{},
		&models.UserBlock{},
		&models.Comment{},
		&models.Reaction{},
		&models.SavedPost{},
		&models.Notification{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.MessageBatch{},
		&models.ChatRoom{},
		&models.ChatRoomMember{},
		&models.ChatMessage{},
	}
}

// SetupRoutes migrates the schema, builds repositories and services, and registers every route
func SetupRoutes(ctx context.Context, e *echo.Echo, deps Dependencies) (*App, error) {
	log := logger.Component(deps.Log, "router")
	cfg := deps.Config

	if err := deps.Postgres.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("failed to auto migrate models: %w", err)
	}
	log.Info("PostgreSQL auto-migrations completed for all models.")

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(deps.Postgres)
	postRepo := repositories.NewMongoPostRepository(deps.Mongo)
	commentRepo := repositories.NewPostgresCommentRepository(deps.Postgres)
	reactionRepo := repositories.NewPostgresReactionRepository(deps.Postgres)
	followRepo := repositories.NewPostgresFollowRepository(deps.Postgres)
	blockRepo := repositories.NewPostgresBlockRepository(deps.Postgres)
	savedPostRepo := repositories.NewPostgresSavedPostRepository(deps.Postgres)
	notificationRepo := repositories.NewPostgresNotificationRepository(deps.Postgres)
	conversationRepo := repositories.NewPostgresConversationRepository(deps.Postgres)
	roomRepo := repositories.NewPostgresRoomRepository(deps.Postgres)

	indexCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := postRepo.EnsureIndexes(indexCtx); err != nil {
		log.WithError(err).Warn("failed to ensure post indexes")
	}

	// --- Presence and realtime hub ---
	var tracker presence.Tracker
	var backplane realtime.Backplane
	if deps.Redis != nil {
		host, _ := os.Hostname()
		tracker = presence.NewRedisTracker(deps.Redis, host+"-"+uuid.NewString()[:8], cfg.PresenceTTL)
		backplane = realtime.NewRedisBackplane(deps.Redis, "")
	} else {
		log.Warn("REDIS_URL not set, using in-memory presence and a local-only hub")
		tracker = presence.NewMemoryTracker(cfg.PresenceTTL)
	}
	presenceService := presence.NewService(tracker, userRepo, logger.Component(deps.Log, "presence"))
	hub := realtime.NewHub(
		logger.Component(deps.Log, "hub"),
		backplane,
		services.NewHubResolver(conversationRepo, roomRepo, blockRepo, logger.Component(deps.Log, "hub")),
		realtime.Hooks{
			Connected:    presenceService.Connected,
			Disconnected: presenceService.Disconnected,
			Heartbeat:    presenceService.Heartbeat,
		},
	)

	// --- Services ---
	var pusher services.Pusher
	var verifier handlers.FirebaseVerifier
	authConfig := middleware.AuthConfig{Secret: cfg.JWTSecret, Users: userRepo, Log: logger.Component(deps.Log, "auth")}
	if deps.Firebase != nil {
		pusher = deps.Firebase.Messaging
		verifier = deps.Firebase.AuthClient
		authConfig.Firebase = deps.Firebase.AuthClient
	}
	notificationService := services.NewNotificationService(
		notificationRepo, userRepo, blockRepo, followRepo, hub, pusher, logger.Component(deps.Log, "notifications"),
	)
	chatService := services.NewChatService(
		conversationRepo, userRepo, blockRepo, hub, presenceService, cfg.ChatBatchSize, logger.Component(deps.Log, "chat"),
	)
	roomService := services.NewRoomService(roomRepo, userRepo, blockRepo, hub, logger.Component(deps.Log, "rooms"))

	// Health check - always accessible
	sqlDB, err := deps.Postgres.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	handlers.NewHealthHandler(sqlDB).RegisterHealthRoutes(e)

	authLimiter := middleware.NewRateLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst, logger.Component(deps.Log, "ratelimit"))
	apiLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger.Component(deps.Log, "ratelimit"))
	jwtAuth := middleware.JWTAuthMiddleware(authConfig)

	// --- Unprotected routes for authentication ---
	authHandler := handlers.NewAuthHandler(userRepo, verifier, cfg.JWTSecret, cfg.JWTTTL, logger.Component(deps.Log, "auth"))
	authGroup := e.Group("/api/v1/auth")
	authGroup.Use(authLimiter.Middleware())
	authHandler.RegisterAuthRoutes(authGroup)
	log.Info("Auth routes configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(jwtAuth, apiLimiter.Middleware())
	authHandler.RegisterAccountRoutes(api)

	handlers.NewUserHandler(userRepo, followRepo, blockRepo, presenceService).RegisterProfileRoutes(api)
	handlers.NewPostHandler(postRepo, userRepo, blockRepo, reactionRepo, savedPostRepo, notificationService, logger.Component(deps.Log, "posts")).RegisterPostRoutes(api)
	handlers.NewMediaHandler(deps.Media).RegisterMediaRoutes(api)
	handlers.NewFeedHandler(postRepo, userRepo, followRepo, blockRepo, reactionRepo, savedPostRepo).RegisterFeedRoutes(api)
	handlers.NewSavedPostHandler(savedPostRepo, postRepo, userRepo, blockRepo).RegisterSavedPostRoutes(api)
	handlers.NewCommentHandler(commentRepo, postRepo, userRepo, blockRepo, reactionRepo, notificationService, logger.Component(deps.Log, "comments")).RegisterCommentRoutes(api)
	handlers.NewReactionHandler(reactionRepo, postRepo, commentRepo, userRepo, blockRepo, notificationService, logger.Component(deps.Log, "reactions")).RegisterReactionRoutes(api)
	handlers.NewFollowHandler(followRepo, userRepo, blockRepo, notificationService, logger.Component(deps.Log, "follows")).RegisterFollowRoutes(api)
	handlers.NewBlockHandler(blockRepo, userRepo).RegisterBlockRoutes(api)
	handlers.NewNotificationHandler(notificationRepo, userRepo).RegisterNotificationRoutes(api)
	handlers.NewChatHandler(chatService, roomService).RegisterChatRoutes(api)
	handlers.NewRoomHandler(roomService).RegisterRoomRoutes(api)
	log.Info("API routes configured.")

	// Realtime hub; the token may come from ?token= since browsers cannot set headers on websockets
	e.GET("/ws", handlers.NewWSHandler(hub, logger.Component(deps.Log, "ws")).Connect, jwtAuth)

	return &App{
		Hub:          hub,
		Presence:     presenceService,
		RateLimiters: []*middleware.RateLimiter{authLimiter, apiLimiter},
	}, nil
}

// MetricsServer returns the echo instance serving /metrics on its own port
func MetricsServer() *echo.Echo {
	m := echo.New()
	m.HideBanner = true
	m.HidePort = true
	m.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	return m
}
