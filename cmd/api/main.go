package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kassenwart/kassenwart-backend/internal/bank"
	"github.com/kassenwart/kassenwart-backend/internal/config"
	"github.com/kassenwart/kassenwart-backend/internal/handler"
	"github.com/kassenwart/kassenwart-backend/internal/middleware"
	"github.com/kassenwart/kassenwart-backend/internal/repository/postgres"
	"github.com/kassenwart/kassenwart-backend/internal/repository/storage"
	"github.com/kassenwart/kassenwart-backend/internal/sepa"
	"github.com/kassenwart/kassenwart-backend/internal/service"
	"github.com/kassenwart/kassenwart-backend/internal/websocket"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Connect to database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	// Verify database connection
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// Initialize repositories
	memberRepo := postgres.NewMemberRepository(pool)
	batchRepo := postgres.NewBatchRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)

	// Export archive, disabled unless a bucket is configured
	var archive storage.ExportArchive = storage.NoOpArchive{}
	if cfg.S3.Bucket != "" {
		s3Archive, err := storage.NewS3ExportArchive(context.Background(), cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize export archive")
		}
		archive = s3Archive
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Export archive enabled")
	}

	// Banking collaborators
	bankClient := bank.NewGatewayClient(cfg.Bank)
	exporter := sepa.NewExporter()

	// WebSocket hub for dashboard event streaming
	hub := websocket.NewHub()

	// Initialize services
	eligibilityService := service.NewEligibilityService(memberRepo)
	mandateService := service.NewMandateService(memberRepo, eligibilityService, cfg.Debit)
	mandateService.SetEventPublisher(hub)
	batchService := service.NewBatchService(batchRepo, paymentRepo, eligibilityService, exporter, archive, cfg.Debit)
	batchService.SetEventPublisher(hub)
	transmissionService := service.NewTransmissionService(batchRepo, paymentRepo, bankClient, cfg.Debit)
	transmissionService.SetEventPublisher(hub)
	dashboardService := service.NewDashboardService(eligibilityService, cfg.Debit)
	notificationService := service.NewNotificationService(notificationRepo)

	// Initialize auth middleware
	authMiddleware, err := middleware.NewAuthMiddleware(cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create auth middleware")
	}

	// JWT validator for websocket query-token auth
	wsValidator, err := websocket.NewAuth0JWTValidator(cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create websocket JWT validator")
	}

	// Initialize handlers
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	memberHandler := handler.NewMemberHandler(eligibilityService)
	mandateHandler := handler.NewMandateHandler(mandateService)
	batchHandler := handler.NewBatchHandler(batchService)
	transmissionHandler := handler.NewTransmissionHandler(transmissionService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	wsHandler := handler.NewWebSocketHandler(hub, wsValidator, cfg.CORSOrigins)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Register API routes
	handler.RegisterRoutes(e, authMiddleware, dashboardHandler, memberHandler, mandateHandler, batchHandler, transmissionHandler, notificationHandler, wsHandler)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
