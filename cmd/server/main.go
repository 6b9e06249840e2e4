package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-segment-backend/internal/config"
	"github.com/smarttransit/seat-segment-backend/internal/database"
	"github.com/smarttransit/seat-segment-backend/internal/events"
	"github.com/smarttransit/seat-segment-backend/internal/handlers"
	"github.com/smarttransit/seat-segment-backend/internal/middleware"
	"github.com/smarttransit/seat-segment-backend/internal/services"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting segment seat booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.WithField("driver", cfg.Database.Driver).Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Repositories
	topologyRepo := database.NewTopologyRepository(db.DB)
	seatRepo := database.NewSeatRepository(db.DB)
	fareRepo := database.NewFareRepository(db.DB)
	orderRepo := database.NewOrderRepository(db.DB)
	outboxRepo := database.NewOutboxRepository(db.DB)
	txManager := database.NewTxManager(db.DB, cfg.Database.IsolationLevel, cfg.Database.TxMaxAttempts, logger)

	stores := services.Stores{
		Topology: topologyRepo,
		Seats:    seatRepo,
		Fares:    fareRepo,
		Orders:   orderRepo,
		Events:   outboxRepo,
	}

	// Initialize services
	logger.Info("Initializing services...")
	clock := services.NewSystemClock(cfg.Server.Timezone)
	topologyService := services.NewTopologyService(topologyRepo)
	availabilityService := services.NewAvailabilityService(topologyRepo, seatRepo, topologyService, logger)
	pricingService := services.NewPricingService(fareRepo)
	bookingService := services.NewBookingService(txManager, stores, topologyService, availabilityService, pricingService, clock, logger)
	lifecycleService := services.NewOrderLifecycleService(txManager, stores, topologyService, availabilityService, clock, logger)
	searchService := services.NewSearchService(stores, topologyService, availabilityService, pricingService, clock, logger)
	ticketService := services.NewTicketService(orderRepo, clock)
	auditor := services.NewIntegrityAuditor(stores, topologyService, clock, logger)

	// Scheduled integrity audit
	var cronService *services.CronService
	if cfg.Audit.Enabled {
		cronService = services.NewCronService(auditor, cfg.Audit.Cron, logger)
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
	}

	// Background workers stop when rootCtx is cancelled
	rootCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// Outbox publishing
	publisher, err := events.NewPublisher(cfg.Events)
	if err != nil {
		logger.Fatalf("Failed to create event publisher: %v", err)
	}
	pollerDone := make(chan struct{})
	if publisher != nil {
		poller := events.NewOutboxPoller(outboxRepo, publisher, cfg.Events.PollInterval, cfg.Events.BatchSize, cfg.Events.ClaimLease, logger)
		go func() {
			defer close(pollerDone)
			poller.Run(rootCtx)
		}()
		logger.WithField("broker", cfg.Events.Broker).Info("Order event publishing enabled")
	} else {
		close(pollerDone)
		logger.Info("Order event publishing disabled, events stay in the outbox")
	}

	// Redis for idempotency keys
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable, idempotency keys fail open until it recovers")
		}
		cancel()
		defer redisClient.Close()
	} else {
		logger.Info("REDIS_ADDR not set, Idempotency-Key support disabled")
	}

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	orderHandler := handlers.NewOrderHandler(lifecycleService, ticketService, logger)
	searchHandler := handlers.NewSearchHandler(searchService, logger)
	var jobs handlers.JobStatusReporter
	if cronService != nil {
		jobs = cronService
	}
	healthHandler := handlers.NewHealthHandler(db, jobs, version)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check and metrics
	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		bookings := v1.Group("/bookings")
		if redisClient != nil {
			bookings.Use(middleware.Idempotency(redisClient, cfg.Redis.IdempotencyTTL, cfg.Redis.IdempotencyLockTTL, logger))
		}
		bookings.POST("", bookingHandler.Book)

		runs := v1.Group("/runs")
		{
			runs.POST("/search", searchHandler.SearchRuns)
			runs.GET("/:runId/availability", searchHandler.Availability)
		}

		v1.GET("/vehicles/:vehicleId/stops", searchHandler.VehicleStops)

		orders := v1.Group("/orders")
		{
			orders.GET("", orderHandler.ListActive)
			orders.GET("/cancelled", orderHandler.ListCancelled)
			orders.GET("/:orderId", orderHandler.Get)
			orders.GET("/:orderId/ticket.pdf", orderHandler.Ticket)
			orders.DELETE("/:orderId", orderHandler.Cancel)
			orders.PUT("/:orderId/restore", orderHandler.Restore)
		}

		if cronService != nil {
			admin := v1.Group("/admin")
			admin.POST("/integrity-audit", func(c *gin.Context) {
				report, err := auditor.Audit(c.Request.Context())
				if err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": "INTERNAL_ERROR"})
					return
				}
				c.JSON(http.StatusOK, report)
			})
			admin.GET("/cron/status", func(c *gin.Context) {
				c.JSON(http.StatusOK, cronService.GetJobStatus())
			})
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  config.RequestTimeout,
		WriteTimeout: config.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	if cronService != nil {
		cronService.Stop()
	}

	stopWorkers()
	<-pollerDone
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close event publisher")
		}
	}

	logger.Info("Server exited successfully")
}
