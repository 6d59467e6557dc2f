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

	"github.com/marketpay/settlement-api/internal/auth"
	"github.com/marketpay/settlement-api/internal/database"
	"github.com/marketpay/settlement-api/internal/orders"
	"github.com/marketpay/settlement-api/internal/settlement"
	"github.com/marketpay/settlement-api/pkg/middleware"

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

// main initializes and runs the settlement API server with graceful shutdown
// support. Services are constructed as plain values and passed to whatever
// owns them; no package-level singletons.
func main() {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService("settlement-secret-key")
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	ordersService := orders.NewService(db)
	ordersHandlers := orders.NewGinHandlers(ordersService)

	settlementService := settlement.NewService(db)
	queryService := settlement.NewQueryService(db)
	settlementHandlers := settlement.NewGinHandlers(settlementService, queryService)

	// Create and start the batch sweeper
	sweeper := settlement.NewSweeper(settlementService)
	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	defer sweeperCancel()

	go sweeper.Start(sweeperCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authHandlers, ordersHandlers, settlementHandlers)

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
// - Auth routes: Public endpoints for authentication
// - Order routes: snapshot ingestion, protected by JWT authentication
// - Settlement read routes: protected by JWT authentication
// - Internal routes: generation and batch lifecycle, protected by internal
//   network authentication
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	ordersHandlers *orders.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Order snapshot ingestion routes
		ordersGroup := v1.Group("/orders")
		ordersGroup.Use(middleware.JWTAuth())
		{
			ordersGroup.POST("", ordersHandlers.CreateOrderHandler())
			ordersGroup.GET("/:order_id", ordersHandlers.GetOrderHandler())
		}

		// Settlement reporting routes
		settlements := v1.Group("/settlements")
		settlements.Use(middleware.JWTAuth())
		{
			settlements.GET("/totals", settlementHandlers.PartyTotalsHandler())
			settlements.GET("/orders/:order_id", settlementHandlers.OrderBreakdownHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.POST("/settlements/generate/:order_id", settlementHandlers.GenerateHandler())
			internal.POST("/settlements/reverse/:order_id", settlementHandlers.ReverseOrderHandler())
			internal.POST("/settlements/batches", settlementHandlers.CreateBatchHandler())
			internal.POST("/settlements/batches/:settlement_id/finalize", settlementHandlers.FinalizeHandler())
			internal.POST("/settlements/batches/:settlement_id/cancel", settlementHandlers.CancelHandler())
		}
	}
}
