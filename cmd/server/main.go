package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/happypaws/dogwalk-backend/internal/config"
	"github.com/happypaws/dogwalk-backend/internal/database"
	"github.com/happypaws/dogwalk-backend/internal/handlers"
	"github.com/happypaws/dogwalk-backend/internal/middleware"
	"github.com/happypaws/dogwalk-backend/internal/services"
	"github.com/happypaws/dogwalk-backend/pkg/events"
	"github.com/happypaws/dogwalk-backend/pkg/jwt"
	"github.com/happypaws/dogwalk-backend/pkg/lock"
	"github.com/happypaws/dogwalk-backend/pkg/payment"
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

	logger.Info("Starting Happy Paws dog walking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	for _, warning := range cfg.Warnings() {
		logger.Warn(warning)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := database.Migrate(migrateCtx, db, logger)
		cancel()
		if err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Payment lock: Redis when configured so every instance sees the same lock
	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.Redis.URL != "" {
		redisCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := lock.NewRedisClient(redisCtx, cfg.Redis.URL)
		cancel()
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client, "dogwalk:")
		logger.Info("Using Redis payment locks")
	}

	// Lifecycle events
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			logger.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		publisher = amqpPublisher
		logger.WithField("exchange", cfg.Events.Exchange).Info("Publishing booking events")
	}
	defer publisher.Close()

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)
	gateway := payment.NewStripeGateway(cfg.Payment.SecretKey, cfg.Payment.WebhookSecret, nil)

	bookingRepository := database.NewBookingRepository(db)
	auditRepository := database.NewPaymentAuditRepository(db, logger)

	bookingService := services.NewBookingService(bookingRepository, publisher, logger)
	paymentService := services.NewPaymentService(
		bookingRepository,
		gateway,
		locker,
		auditRepository,
		publisher,
		services.PaymentConfig{
			Currency: cfg.Payment.Currency,
			LockTTL:  cfg.Payment.LockTTL,
		},
		logger,
	)

	var reconciler handlers.Reconciler
	if cfg.Reconciler.Enabled {
		paymentReconciler := services.NewPaymentReconciler(paymentService, services.ReconcilerConfig{
			Schedule:   cfg.Reconciler.Schedule,
			StaleAfter: cfg.Reconciler.StaleAfter,
			BatchSize:  cfg.Reconciler.BatchSize,
		}, logger)
		if err := paymentReconciler.Start(); err != nil {
			logger.Fatalf("Failed to start payment reconciler: %v", err)
		}
		defer paymentReconciler.Stop()
		reconciler = paymentReconciler
	}
	logger.Info("Services initialized")

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, reconciler, logger)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", handlers.HealthCheck(db, version))

	v1 := router.Group("/api/v1")
	handlers.RegisterRoutes(v1, middleware.AuthMiddleware(jwtService, logger), bookingHandler, paymentHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}
