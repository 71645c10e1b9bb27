package api

import (
	"reel/internal/server/config"
	"reel/internal/server/metrics"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, cfg *config.Config, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	log = log.With().Str("component", "http").Logger()

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization", "X-Share-Password"},
	}))
	e.Use(RequestLogger(log))

	// Rate limiter on endpoints that write new videos or links
	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)

	// Health, stats & metrics
	e.GET("/health", handler.HandleHealth)
	e.GET("/api/stats", handler.HandleStats)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// Videos
	videos := e.Group("/api/videos")
	videos.POST("", handler.HandleUpload, limiter)
	videos.POST("/merge", handler.HandleMerge, limiter)
	videos.GET("/:id", handler.HandleInfo)
	videos.GET("/:id/duration", handler.HandleDuration)
	videos.POST("/:id/trim", handler.HandleTrim, limiter)
	videos.POST("/:id/share", handler.HandleShare, limiter)

	// Shares
	e.GET("/api/share/:token", handler.HandleShareInfo)
	e.GET("/s/:token", handler.HandleShareDownload)

	return e
}
