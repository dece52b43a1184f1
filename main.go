package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/framefind/framefind/internal/breaker"
	"github.com/framefind/framefind/internal/config"
	"github.com/framefind/framefind/internal/handlers"
	"github.com/framefind/framefind/internal/middleware"
	"github.com/framefind/framefind/internal/repository"
	"github.com/framefind/framefind/internal/searchclient"
	"github.com/framefind/framefind/internal/sentry"
	"github.com/framefind/framefind/internal/service"
	"github.com/framefind/framefind/internal/tracing"
)

func main() {
	cfg := config.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.Environment == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	// Initialize Sentry for error reporting
	if err := sentry.InitSentry(); err != nil {
		log.Printf("Failed to initialize Sentry: %v", err)
		// Continue running even if Sentry fails
	}
	defer sentry.Flush(2 * time.Second)

	// Initialize OpenTelemetry tracing
	cleanupTracing, err := tracing.InitTracing("framefind")
	if err != nil {
		log.Printf("Failed to initialize tracing: %v", err)
	} else {
		defer cleanupTracing()
	}

	// The data root must be writable before anything is accepted.
	imagesRoot := filepath.Join(cfg.DataRoot, "uploads", "images")
	if err := os.MkdirAll(imagesRoot, 0o755); err != nil {
		log.Fatal("Data root is not writable: ", err)
	}

	db, err := config.ConnectDatabase(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}

	// Repositories (constructors migrate their own tables; order matters for
	// foreign keys)
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	imageRepo := repository.NewImageRepository(db)
	retryRepo := repository.NewRetryQueueRepository(db)

	// Search backend: one concrete client selected by configuration, wrapped
	// by the circuit breakers and fallback table.
	backendClient, err := searchclient.New(cfg.Search, logger)
	if err != nil {
		log.Fatal("Failed to initialize search client: ", err)
	}
	logger.Info().Str("backend", backendClient.Name()).Msg("Search backend selected")

	failedRequests := service.NewFailedRequestService(retryRepo, cfg.Retry.MaxAttempts, logger)

	searchBackend := searchclient.NewResilient(searchclient.ResilientConfig{
		Inner:   backendClient,
		Store:   failedRequests,
		Breaker: cfg.Breaker,
		Timeout: cfg.Search.RequestTimeout,
		Logger:  logger,
		OnStateChange: func(name string, from, to breaker.State) {
			middleware.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	// Background pipelines. The retry scheduler replays through the raw
	// client so failed replays count attempts instead of re-entering the
	// fallback path.
	dispatcher := service.NewEmbeddingDispatcher(searchBackend, cfg.Async, logger)
	scheduler := service.NewRetryScheduler(retryRepo, backendClient, cfg.Retry, cfg.Search.RequestTimeout, logger)

	// Services
	folderService := service.NewFolderService(service.FolderServiceConfig{
		FolderRepo: folderRepo,
		ImageRepo:  imageRepo,
		UserRepo:   userRepo,
		Search:     searchBackend,
		DataRoot:   cfg.DataRoot,
		Logger:     logger,
	})
	authService := service.NewAuthService(service.AuthServiceConfig{
		UserRepo:    userRepo,
		SessionRepo: sessionRepo,
		Folders:     folderService,
		Session:     cfg.Session,
		BcryptCost:  cfg.BcryptCost,
		DataRoot:    cfg.DataRoot,
		Logger:      logger,
	})
	uploadService := service.NewUploadService(service.UploadServiceConfig{
		Folders:    folderService,
		ImageRepo:  imageRepo,
		Dispatcher: dispatcher,
		Upload:     cfg.Upload,
		DataRoot:   cfg.DataRoot,
		Logger:     logger,
	})
	searchService := service.NewSearchService(service.SearchServiceConfig{
		Folders:       folderService,
		ImageRepo:     imageRepo,
		Search:        searchBackend,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        logger,
	})

	// Handlers
	userHandler := handlers.NewUserHandler(authService)
	imageHandler := handlers.NewImageHandler(uploadService, searchService)
	folderHandler := handlers.NewFolderHandler(authService, folderService)
	adminHandler := handlers.NewAdminHandler(failedRequests, scheduler)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.MaxMultipartMemory = cfg.Upload.MaxBodyBytes

	// Global middleware
	router.Use(sentry.GinSentryMiddleware())
	router.Use(tracing.GinMiddleware("framefind"))
	router.Use(middleware.Prometheus())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.ErrorHandler())

	// Metrics endpoint for Prometheus scraping
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health endpoints
	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/health/ready", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "detail": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Static serving of uploaded images
	router.Static("/images", imagesRoot)

	// Rate limiter for the search endpoint (50 requests per minute per user)
	rateLimiter := middleware.NewRateLimiterStore(50)

	// API routes
	api := router.Group("/api")
	{
		users := api.Group("/users")
		{
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)
			users.POST("/logout", userHandler.Logout)
			users.DELETE("/delete", userHandler.Delete)
		}

		images := api.Group("/images")
		{
			images.POST("/upload", middleware.BodyLimit(cfg.Upload.MaxBodyBytes), middleware.AuthRequired(authService), imageHandler.Upload)
			images.GET("/search", middleware.AuthRequired(authService), middleware.RateLimit(rateLimiter), imageHandler.Search)
		}

		folders := api.Group("/folders")
		{
			folders.GET("", middleware.AuthRequired(authService), folderHandler.List)
			folders.DELETE("", folderHandler.Delete)
			folders.POST("/share", folderHandler.Share)
		}

		admin := api.Group("/admin/retry-queue")
		{
			admin.GET("/stats", adminHandler.Stats)
			admin.POST("/trigger-embed-retry", adminHandler.TriggerEmbedRetry)
			admin.POST("/trigger-index-deletion-retry", adminHandler.TriggerIndexDeletionRetry)
		}
	}

	// Start background services
	dispatcher.StartWorkers()
	scheduler.StartWorkers()
	authService.StartExpirySweeper()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Framefind API starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start: ", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop intake first, then drain the pipelines.
	dispatcher.StopWorkers()
	scheduler.StopWorkers()
	authService.StopExpirySweeper()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Info().Msg("Framefind API exited")
}
