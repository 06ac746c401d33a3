package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/config"
	"github.com/dafibh/fortuna/ledger-backend/internal/handler"
	"github.com/dafibh/fortuna/ledger-backend/internal/middleware"
	"github.com/dafibh/fortuna/ledger-backend/internal/repository/postgres"
	"github.com/dafibh/fortuna/ledger-backend/internal/repository/storage"
	"github.com/dafibh/fortuna/ledger-backend/internal/service"
	"github.com/dafibh/fortuna/ledger-backend/internal/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
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

	// Apply schema migrations before the pool starts serving queries
	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
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
	userRepo := postgres.NewUserRepository(pool)
	walletRepo := postgres.NewWalletRepository(pool)
	transactionRepo := postgres.NewTransactionRepository(pool)
	budgetRepo := postgres.NewBudgetRepository(pool)
	milestoneRepo := postgres.NewMilestoneRepository(pool)

	// Backups stay disabled unless a bucket is configured
	var backupStore storage.BackupStore
	if cfg.S3.Enabled() {
		s3Store, err := storage.NewS3BackupStore(context.Background(), cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup storage")
		}
		backupStore = s3Store
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Backup storage enabled")
	} else {
		log.Warn().Msg("S3_BUCKET not set, backups disabled")
	}

	// Initialize services
	authService := service.NewAuthService(userRepo)
	calculationService := service.NewCalculationService(walletRepo, transactionRepo)
	evaluator := service.NewConditionEvaluator(calculationService, budgetRepo, transactionRepo)
	milestoneService := service.NewMilestoneService(milestoneRepo, evaluator, cfg.EvaluationConcurrency)
	transactionService := service.NewTransactionService(transactionRepo, walletRepo)
	walletService := service.NewWalletService(walletRepo, transactionRepo, milestoneRepo, calculationService)
	budgetService := service.NewBudgetService(budgetRepo, calculationService)
	reportService := service.NewReportService(walletRepo, transactionRepo)
	backupService := service.NewBackupService(backupStore, walletRepo, budgetRepo, transactionRepo, milestoneRepo)

	// Ledger change events
	hub := websocket.NewHub()
	transactionService.SetEventPublisher(hub)
	walletService.SetEventPublisher(hub)
	budgetService.SetEventPublisher(hub)
	backupService.SetEventPublisher(hub)

	// Initialize auth middleware
	authMiddleware, err := middleware.NewAuthMiddleware(cfg.Auth0Domain, cfg.Auth0Audience, authService)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create auth middleware")
	}
	wsValidator, err := websocket.NewAuth0JWTValidator(cfg.Auth0Domain, cfg.Auth0Audience, authService)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create websocket token validator")
	}

	rateLimiter := middleware.NewRateLimiterWithConfig(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	defer rateLimiter.Stop()

	// Initialize handlers
	handlers := handler.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		Milestone:   handler.NewMilestoneHandler(milestoneService),
		Wallet:      handler.NewWalletHandler(walletService),
		Transaction: handler.NewTransactionHandler(transactionService),
		Budget:      handler.NewBudgetHandler(budgetService),
		Backup:      handler.NewBackupHandler(backupService),
		Report:      handler.NewReportHandler(reportService),
		WebSocket:   handler.NewWebSocketHandler(hub, wsValidator, cfg.CORSOrigins),
	}

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

	// Security headers middleware
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
		if err := pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Register API routes
	handler.RegisterRoutes(e, authMiddleware, rateLimiter, handlers)

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
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Int("clients", hub.CloseAll()).Msg("Closed websocket connections")

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

			event := log.Info()
			if res.Status >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.
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
