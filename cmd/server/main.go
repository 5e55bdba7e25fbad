package main

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adiwira/cashflow-server/internal/api"
	"github.com/adiwira/cashflow-server/internal/cache"
	"github.com/adiwira/cashflow-server/internal/config"
	"github.com/adiwira/cashflow-server/internal/logger"
	"github.com/adiwira/cashflow-server/internal/ratelimit"
	"github.com/adiwira/cashflow-server/internal/repository"
	"github.com/adiwira/cashflow-server/internal/service"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	log := logger.New(cfg.Log.Level)

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up database")
	}
	defer db.Close()

	// Redis is optional; everything degrades to in-process behaviour.
	redisClient := config.SetupRedis(cfg, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Create cache and rate limiter
	appCache := cache.New(redisClient, cfg.Redis.Prefix, log)
	limiter := ratelimit.New(redisClient, cfg.Redis.Prefix, log)

	// Create service
	svc := service.NewDefaultService(repo, appCache, cfg, log)

	// Create API handler
	handler := api.NewHandler(svc, limiter, cfg.RateLimit.PublicLimit, cfg.RateLimit.PublicWindow)

	// Set up Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.RequestLogger(log))

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info().Str("addr", serverAddr).Msg("Starting server")
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
