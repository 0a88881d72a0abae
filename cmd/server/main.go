package main

import (
	"context"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/studyshare/backend/internal/broker"
	"github.com/studyshare/backend/internal/config"
	"github.com/studyshare/backend/internal/database"
	"github.com/studyshare/backend/internal/handler"
	"github.com/studyshare/backend/internal/journal"
	"github.com/studyshare/backend/internal/middleware"
	"github.com/studyshare/backend/internal/repository"
	"github.com/studyshare/backend/internal/service"
	"github.com/studyshare/backend/internal/storage"
	"github.com/studyshare/backend/pkg/logger"
)

func main() {
	cfg := config.Load()

	isProduction := cfg.Environment == "production"
	if err := logger.Init(!isProduction); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	database.Connect(cfg)
	database.Migrate()

	// Upload journal
	uploadJournal, err := journal.NewJournal(cfg.JournalPath)
	if err != nil {
		log.Fatalf("Failed to open upload journal: %v", err)
	}
	defer uploadJournal.Close()

	// Blob storage backend
	blobs, err := newBlobStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize blob storage: %v", err)
	}

	// Redis event broker (also backs the rate limiter)
	eventBroker, err := broker.NewRedisEventBroker(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to initialize event broker: %v", err)
	}
	defer eventBroker.Close()

	// Repositories
	userRepo := repository.NewUserRepository(database.DB)
	materialRepo := repository.NewMaterialRepository(database.DB)
	commentRepo := repository.NewCommentRepository(database.DB)

	// Services
	authService := service.NewAuthService(
		userRepo, blobs, uploadJournal,
		cfg.JWTSecret, cfg.SessionExpiry, cfg.RememberExpiry, cfg.Environment,
		cfg.MaxUploadBytes,
	)
	materialService := service.NewMaterialService(
		materialRepo, userRepo, blobs, uploadJournal, eventBroker, cfg.MaxUploadBytes,
	)
	commentService := service.NewCommentService(commentRepo, materialRepo, eventBroker)
	adminService := service.NewAdminService(userRepo, blobs, uploadJournal)

	// Reap orphan blobs from interrupted uploads/deletes before serving.
	if err := materialService.ReconcileJournal(context.Background()); err != nil {
		log.Fatalf("Journal reconciliation failed: %v", err)
	}

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	materialHandler := handler.NewMaterialHandler(materialService, commentService)
	commentHandler := handler.NewCommentHandler(commentService)
	profileHandler := handler.NewProfileHandler(authService)
	adminHandler := handler.NewAdminHandler(adminService)
	feedHandler := handler.NewFeedHandler(eventBroker)

	if err := feedHandler.Start(); err != nil {
		log.Fatalf("Failed to start activity feed: %v", err)
	}

	rateLimiter := middleware.NewRateLimiter(eventBroker.Client(), middleware.RateLimiterConfig{
		MaxRequests: cfg.RateLimitMaxRequests,
		Window:      cfg.RateLimitWindow,
		BlockTime:   cfg.RateLimitBlockTime,
	})

	router := gin.Default()
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.HSTSMiddleware(isProduction))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true, // session cookie
	}))
	router.Use(rateLimiter.Middleware())

	// Public routes
	router.POST("/api/auth/register", authHandler.Register)
	router.POST("/api/auth/login", authHandler.Login)

	// Protected routes (require a session)
	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	{
		protected.POST("/auth/logout", authHandler.Logout)

		protected.GET("/materials", materialHandler.List)
		protected.POST("/materials", middleware.BodyLimitMiddleware(cfg.MaxUploadBytes), materialHandler.Upload)
		protected.GET("/materials/:id", materialHandler.Get)
		protected.GET("/materials/:id/download", materialHandler.Download)
		protected.GET("/materials/:id/preview", materialHandler.Preview)
		protected.POST("/materials/:id/like", materialHandler.Like)
		protected.DELETE("/materials/:id", materialHandler.Delete)
		protected.POST("/materials/:id/comments", commentHandler.Post)

		protected.GET("/profile", profileHandler.Get)
		protected.PUT("/profile/password", profileHandler.ChangePassword)
		protected.POST("/profile/picture", middleware.BodyLimitMiddleware(cfg.MaxUploadBytes), profileHandler.UpdatePicture)

		protected.GET("/feed", feedHandler.HandleFeed)
	}

	// Admin-only routes; role is re-checked against the store here
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	admin.Use(middleware.AdminMiddleware(userRepo))
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)
	}

	log.Printf("Server starting on %s", cfg.ServerPort)
	if err := router.Run(cfg.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func newBlobStore(cfg *config.Config) (storage.BlobStore, error) {
	if cfg.StorageBackend == "minio" {
		return storage.NewMinioStore(cfg)
	}
	return storage.NewLocalStore(cfg.UploadDir)
}
