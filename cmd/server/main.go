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
	"github.com/localbazaar/reservation-backend/internal/cache"
	"github.com/localbazaar/reservation-backend/internal/config"
	"github.com/localbazaar/reservation-backend/internal/database"
	"github.com/localbazaar/reservation-backend/internal/handlers"
	"github.com/localbazaar/reservation-backend/internal/middleware"
	"github.com/localbazaar/reservation-backend/internal/services"
	"github.com/localbazaar/reservation-backend/pkg/events"
	"github.com/localbazaar/reservation-backend/pkg/gateway"
	"github.com/localbazaar/reservation-backend/pkg/jwt"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
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

	logger.Info("Starting LocalBazaar reservation backend")
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

	// Optional infrastructure: both degrade to a plain DB-backed service
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, catalog cache and rate limiting disabled")
			rdb = nil
		} else {
			defer rdb.Close()
			logger.Infof("Redis connected at %s", cfg.Redis.Addr)
		}
	}

	var publisher services.EventPublisher
	if cfg.RabbitMQ.Enabled {
		p, err := events.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.WithError(err).Warn("RabbitMQ unavailable, booking events will not be published")
		} else {
			defer p.Close()
			publisher = p
			logger.Infof("Publishing booking events to exchange %s", cfg.RabbitMQ.Exchange)
		}
	}

	// Initialize repositories
	logger.Info("Initializing services...")
	resourceRepo := database.NewResourceRepository(db)
	bookingRepo := database.NewBookingRepository(db)
	couponRepo := database.NewCouponRepository(db)
	orderRepo := database.NewPaymentOrderRepository(db)
	auditRepo := database.NewPaymentAuditRepository(db, logger)

	var catalog services.ResourceCatalog = resourceRepo
	if rdb != nil {
		catalog = cache.NewResourceCache(rdb, resourceRepo, cfg.Redis.CatalogTTL, logger)
	}

	// Initialize services
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	availabilityService := services.NewAvailabilityService(catalog, bookingRepo, cfg.Booking.MaxBookingDays, logger)
	couponService := services.NewCouponService(couponRepo, catalog, logger)
	auditService := services.NewPaymentAuditService(auditRepo, logger)
	ledgerService := services.NewBookingLedgerService(
		db,
		resourceRepo,
		bookingRepo,
		availabilityService,
		couponService,
		publisher,
		services.LedgerConfig{
			GracePeriod:   cfg.Booking.GracePeriod,
			PaymentWindow: cfg.Booking.PaymentWindow,
			LockTimeout:   cfg.Database.LockTimeout,
			Currency:      cfg.Payment.Currency,
		},
		logger,
	)

	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.Payment.BaseURL,
		KeyID:     cfg.Payment.KeyID,
		KeySecret: cfg.Payment.KeySecret,
		Timeout:   cfg.Payment.Timeout,
	}, logger)
	if cfg.Payment.KeyID == "" || cfg.Payment.KeySecret == "" {
		logger.Warn("Payment gateway credentials missing, payment order creation will fail")
	}

	paymentOrderService := services.NewPaymentOrderService(
		db,
		bookingRepo,
		orderRepo,
		ledgerService,
		gatewayClient,
		auditService,
		cfg.Payment.Timeout,
		cfg.Database.LockTimeout,
		logger,
	)
	paymentConfirmationService := services.NewPaymentConfirmationService(
		db,
		bookingRepo,
		orderRepo,
		ledgerService,
		auditService,
		cfg.Payment.WebhookSecret,
		cfg.Database.LockTimeout,
		logger,
	)
	pricingService := services.NewSubscriptionPricingService(
		cfg.Subscription.LaunchDate,
		cfg.Subscription.LaunchWindowMonths,
		cfg.Payment.Currency,
	)

	// Initialize and start the expiry sweeper
	sweeper := services.NewExpirySweeperService(bookingRepo, ledgerService, cfg.Booking.SweepBatchSize, logger)
	cronService := services.NewCronService(sweeper, cfg.Booking.SweepSchedule, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	logger.Infof("Cron service started - expiry sweeper on %q", cfg.Booking.SweepSchedule)

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(ledgerService, paymentOrderService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentConfirmationService, logger)
	catalogHandler := handlers.NewCatalogHandler(availabilityService, couponService, pricingService, logger)
	adminHandler := handlers.NewAdminHandler(sweeper, cronService, auditService, logger)

	// Setup Gin router
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS middleware
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     append(cfg.CORS.AllowedHeaders, handlers.SignatureHeader),
		ExposeHeaders:    []string{"Content-Length", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	window := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
	bookingLimit := middleware.RateLimit(rdb, middleware.RateLimitConfig{
		Prefix:   "bookings",
		Requests: cfg.RateLimit.Requests,
		Window:   window,
	}, logger)
	couponLimit := middleware.RateLimit(rdb, middleware.RateLimitConfig{
		Prefix:   "coupons",
		Requests: cfg.RateLimit.Requests,
		Window:   window,
	}, logger)
	authMiddleware := middleware.AuthMiddleware(jwtService, logger)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public
		v1.GET("/resources/:id/availability", catalogHandler.GetAvailability)
		v1.GET("/subscription/plans", catalogHandler.GetSubscriptionPlans)

		// Authenticated by the gateway signature, not a session
		v1.POST("/payments/confirm", paymentHandler.ConfirmPayment)

		bookings := v1.Group("/bookings")
		bookings.Use(authMiddleware)
		{
			bookings.POST("", bookingLimit, bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.ListBookings)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
			bookings.POST("/:id/payment-order", bookingHandler.CreatePaymentOrder)
		}

		v1.POST("/coupons/validate", authMiddleware, couponLimit, catalogHandler.ValidateCoupon)

		admin := v1.Group("/admin")
		admin.Use(authMiddleware, middleware.RequireRole(jwt.RoleAdmin))
		{
			admin.POST("/sweeper/run", adminHandler.RunSweeper)
			admin.GET("/sweeper/status", adminHandler.GetSweeperStatus)
			admin.GET("/payments/:orderId/audits", adminHandler.GetPaymentAudits)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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

	// Stop accepting sweeps before the DB goes away
	logger.Info("Stopping cron service...")
	cronService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}

		// Add user context if available
		if userCtx, ok := middleware.GetUserContext(c); ok {
			fields["user_id"] = userCtx.UserID
			fields["roles"] = userCtx.Roles
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		// Log based on status code
		status := c.Writer.Status()
		if status >= 500 {
			entry.Error("Request completed with server error")
		} else if status >= 400 {
			entry.Warn("Request completed with client error")
		} else {
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
