package router

import (
	"log"
	"log/slog"
	"os"

	"github.com/attendly/backend/internal/handlers"
	"github.com/attendly/backend/internal/middleware"
	"github.com/attendly/backend/internal/models"
	"github.com/attendly/backend/internal/notify"
	"github.com/attendly/backend/internal/repositories"
	"github.com/attendly/backend/internal/services"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, pgdb *gorm.DB, redisClient *redis.Client) {
	// AutoMigrate PostgreSQL models
	err := pgdb.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.EventMembership{},
		&models.Connection{},
		&models.MessageThread{},
		&models.DirectMessage{},
		&models.Notification{},
	)
	if err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}

	// Expression indexes AutoMigrate cannot express: one connection row per
	// unordered pair, and one thread per pair and scope (NULL scope = global).
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_connection_pair
			ON connections (LEAST(requester_id, recipient_id), GREATEST(requester_id, recipient_id))`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_thread_pair_scope
			ON message_threads (user1_id, user2_id, COALESCE(event_scope_id, 0))`,
	}
	for _, stmt := range indexes {
		if err := pgdb.Exec(stmt).Error; err != nil {
			log.Fatalf("Failed to create index: %v", err)
		}
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	membershipRepo := repositories.NewPostgresMembershipRepository(pgdb)
	connectionRepo := repositories.NewPostgresConnectionRepository(pgdb)
	threadRepo := repositories.NewPostgresThreadRepository(pgdb)
	messageRepo := repositories.NewPostgresMessageRepository(pgdb)
	notificationRepo := repositories.NewPostgresNotificationRepository(pgdb)
	uow := repositories.NewUnitOfWork(pgdb)

	notifier := notify.NewRedisNotifier(redisClient, logger)

	// --- Initialize Services ---
	connectionService := services.NewConnectionService(uow, connectionRepo, threadRepo, userRepo, membershipRepo, notificationRepo, notifier, logger)
	threadService := services.NewThreadService(threadRepo, connectionRepo, messageRepo, userRepo, membershipRepo)
	messageService := services.NewMessageService(uow, threadRepo, messageRepo, connectionRepo, userRepo, membershipRepo, notificationRepo, notifier, logger)

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware())
	log.Println("JWT authentication middleware applied to /api/v1 group.")

	// Connection routes
	connectionHandler := handlers.NewConnectionHandler(connectionService, userRepo)
	connectionHandler.RegisterConnectionRoutes(api)
	log.Println("Connection routes configured.")

	// Thread routes
	threadHandler := handlers.NewThreadHandler(threadService, messageService)
	threadHandler.RegisterThreadRoutes(api)
	log.Println("Thread routes configured.")

	// Message routes
	messageHandler := handlers.NewMessageHandler(messageService)
	messageHandler.RegisterMessageRoutes(api)
	log.Println("Message routes configured.")

	// Notification routes
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, userRepo)
	notificationHandler.RegisterNotificationRoutes(api)
	log.Println("Notification routes configured.")

	log.Println("All routes configured.")
}
