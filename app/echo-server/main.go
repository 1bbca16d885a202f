package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"buckit/app/echo-server/router"
	"buckit/business/bandit"
	"buckit/business/recommend"
	psqlRepo "buckit/internal/repository/postgres"
	redisRepo "buckit/internal/repository/redis"
	"buckit/internal/rest"
	"buckit/pkg/config"
	"buckit/pkg/database"
	redisdb "buckit/pkg/database/redis"
	"buckit/pkg/logger"
	"buckit/pkg/metrics"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting Buckit recommendations", "version", cfg.App.Version)

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	logger.Info("Database connected successfully")

	redisClient, err := redisdb.NewRedisClient(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", "error", err)
	}

	logger.Info("Redis connected successfully")

	metrics.Init()

	// Init repo
	candidateRepo := psqlRepo.NewCandidateRepository(db)
	vectorRepo := psqlRepo.NewUserVectorRepository(db)
	eventRepo := psqlRepo.NewEventRepository(db)
	experimentRepo := psqlRepo.NewExperimentRepository(db)
	banditArmRepo := psqlRepo.NewBanditArmRepository(db)
	metricRepo := psqlRepo.NewMetricRepository(db)
	cacheRepo := redisRepo.NewCacheRepository(redisClient)
	rateLimiter := redisRepo.NewRateLimiter(redisClient, cfg.Recommend.RateWindow)

	// Init service
	banditService := bandit.NewService(banditArmRepo)
	recommendService := recommend.NewService(
		rateLimiter,
		experimentRepo,
		cacheRepo,
		candidateRepo,
		vectorRepo,
		eventRepo,
		banditService,
		metricRepo,
		cfg.Recommend,
	)

	// Init handler
	recommendHandler := rest.NewRecommendHandler(recommendService)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(traceMiddleware)
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	// Setup routes
	api := e.Group("/api/v1")
	router.SetRecommendationRoutes(api, recommendHandler)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if err := redisdb.CloseRedisClient(redisClient); err != nil {
		logger.Error("Redis close error", "error", err)
	}

	logger.Info("Server stopped")
}

// traceMiddleware copies the echo request ID into the request context so
// pipeline logs can be correlated with the HTTP access log.
func traceMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		rid := c.Response().Header().Get(echo.HeaderXRequestID)
		if rid != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(recommend.ContextWithTraceID(req.Context(), rid)))
		}
		return next(c)
	}
}
