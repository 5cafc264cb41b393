package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/auction-api/internal/auth"
	"github.com/ksred/auction-api/internal/bidding"
	"github.com/ksred/auction-api/internal/catalog"
	"github.com/ksred/auction-api/internal/database"
	"github.com/ksred/auction-api/internal/ledger"
	"github.com/ksred/auction-api/internal/locks"
	"github.com/ksred/auction-api/internal/notification"
	"github.com/ksred/auction-api/internal/rejection"
	"github.com/ksred/auction-api/internal/reputation"
	"github.com/ksred/auction-api/internal/settings"
	"github.com/ksred/auction-api/internal/settlement"
	"github.com/ksred/auction-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the auction API server with graceful shutdown
// support. It wires the bidding engine, rejection engine, settlement, the
// notification outbox and the background processors.
func main() {
	// Initialize database
	db, err := database.NewDatabase(os.Getenv("DATABASE_PATH"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "auction-secret-key"
	}

	// Initialize router
	router := gin.Default()

	// Shared infrastructure
	lockRegistry := locks.NewRegistry()

	// Initialize services and handlers
	authService := auth.NewService(db, jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)

	settingsService := settings.NewService(db)
	settingsHandlers := settings.NewGinHandlers(settingsService)

	reputationService := reputation.NewService(db)
	reputationHandlers := reputation.NewGinHandlers(reputationService)

	settlementService := settlement.NewService(db)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	notificationService := notification.NewService(db)

	biddingService := bidding.NewService(
		db,
		lockRegistry,
		reputationService,
		settingsService,
		settlementService,
		notificationService,
	)
	biddingHandlers := bidding.NewGinHandlers(biddingService)

	rejectionService := rejection.NewService(db, lockRegistry, notificationService)
	rejectionHandlers := rejection.NewGinHandlers(rejectionService)

	catalogService := catalog.NewService(db)
	catalogHandlers := catalog.NewGinHandlers(catalogService)

	ledgerService := ledger.NewService(db)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)

	// Create and start background processors
	closer := settlement.NewCloser(settlementService, lockRegistry, 30*time.Second)
	outboxProcessor := notification.NewProcessor(db, notification.NewLogMailer(), 15*time.Second)

	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go closer.Start(processorCtx)
	go outboxProcessor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(
		router,
		jwtSecret,
		authHandlers,
		catalogHandlers,
		ledgerHandlers,
		biddingHandlers,
		rejectionHandlers,
		settlementHandlers,
		reputationHandlers,
		settingsHandlers,
	)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for registration and token issuance
// - Item routes: Public reads; listing, bidding and rejection require JWT
// - Internal routes: Policy settings, protected by internal network auth
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	catalogHandlers *catalog.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	biddingHandlers *bidding.GinHandlers,
	rejectionHandlers *rejection.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
	reputationHandlers *reputation.GinHandlers,
	settingsHandlers *settings.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandlers.RegisterHandler())
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Public item reads
		items := v1.Group("/items")
		{
			items.GET("", catalogHandlers.ListItemsHandler())
			items.GET("/:item_id", catalogHandlers.GetItemHandler())
			items.GET("/:item_id/bids", ledgerHandlers.GetBidHistoryHandler())
			items.GET("/:item_id/settlement", settlementHandlers.GetItemSettlementHandler())
		}

		// Authenticated item writes
		protected := v1.Group("/items")
		protected.Use(middleware.JWTAuth(jwtSecret))
		{
			protected.POST("", catalogHandlers.CreateItemHandler())
			protected.POST("/:item_id/bids", biddingHandlers.PlaceBidHandler())
			protected.POST("/:item_id/buy-now", biddingHandlers.BuyNowHandler())
			protected.POST("/:item_id/rejections", rejectionHandlers.RejectBidderHandler())
			protected.DELETE("/:item_id/rejections/:bidder_id", rejectionHandlers.UnrejectBidderHandler())
		}

		// Review routes
		users := v1.Group("/users")
		{
			users.GET("/:user_id/rating", reputationHandlers.GetRatingHandler())

			reviews := users.Group("/:user_id/reviews")
			reviews.Use(middleware.JWTAuth(jwtSecret))
			{
				reviews.POST("", reputationHandlers.CreateReviewHandler())
			}
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.GET("/settings", settingsHandlers.GetSettingsHandler())
			internal.PUT("/settings", settingsHandlers.UpdateSettingsHandler())
		}
	}
}
