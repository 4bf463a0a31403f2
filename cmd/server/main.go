package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ideahub/backend/internal/auth"
	"github.com/ideahub/backend/internal/cache"
	"github.com/ideahub/backend/internal/config"
	"github.com/ideahub/backend/internal/database"
	"github.com/ideahub/backend/internal/handlers"
	"github.com/ideahub/backend/internal/leaderboard"
	"github.com/ideahub/backend/internal/logger"
	"github.com/ideahub/backend/internal/metrics"
	"github.com/ideahub/backend/internal/middleware"
	"github.com/ideahub/backend/internal/review"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// No .env is fine in deployed environments.
	}

	if err := logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE")); err != nil {
		panic(err)
	}
	defer logger.Close()

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		logger.FatalWithFields("JWT_SECRET environment variable is required", nil)
	}

	if err := database.Initialize(); err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	metrics.Initialize()

	// Redis is optional; without it view dedup degrades gracefully.
	redisClient, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
	if err != nil {
		logger.Log.Warn("Redis unavailable, continuing without view dedup", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	authService := auth.NewService([]byte(cfg.JWTSecret))
	lbCache := leaderboard.NewCache(cfg.LeaderboardCacheTTL)
	lbService := leaderboard.NewService(database.DB, lbCache)
	jobStore := review.NewStore(database.DB, cfg.MaxJobAttempts)

	// The polling worker is opt-in so API-only replicas stay passive.
	if cfg.WorkerEnabled {
		generator := review.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.OpenAIModel, cfg.ReviewTimeout)
		worker := review.NewWorker(database.DB, jobStore, generator, cfg.WorkerPollEvery, cfg.ReviewTimeout)
		worker.Start()
		defer worker.Stop()
	}

	if os.Getenv("ENVIRONMENT") != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLogger())
	r.Use(middleware.MetricsMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	r.Use(cors.New(corsConfig))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handlers.New(database.DB, authService, lbService, jobStore, redisClient)
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Log.Info("server listening",
			zap.String("port", cfg.Port),
			zap.Bool("worker_enabled", cfg.WorkerEnabled))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.FatalWithFields("Server forced to shutdown", err)
	}

	logger.Log.Info("server exited")
}
