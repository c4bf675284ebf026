package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/Mikespro21/ARC/internal/api/handlers"
	"github.com/Mikespro21/ARC/internal/api/middleware"
	"github.com/Mikespro21/ARC/internal/infrastructure/config"
	"github.com/Mikespro21/ARC/internal/infrastructure/di"
	"github.com/Mikespro21/ARC/pkg/tracing"
)

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container, hub *handlers.StreamHub) *gin.Engine {
	router := gin.New()
	cfg := container.Config

	// Global middleware - order matters
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(cfg.Server.RateLimitPerMin))
	router.Use(middleware.SecurityHeaders())

	validate := handlers.NewValidator()
	engine := container.GetAgentService()

	healthHandler := handlers.NewHealthHandler(container, container.ZapLog, config.AppVersion)
	agentHandlers := handlers.NewAgentHandlers(engine, validate, container.Logger)
	crowdHandlers := handlers.NewCrowdHandlers(engine)
	marketHandlers := handlers.NewMarketHandlers(container.GetMarketDataService(), container.Logger)
	coachHandlers := handlers.NewCoachHandlers(container.GetCoachService(), validate, container.Logger)
	userHandlers := handlers.NewUserHandlers(engine, cfg.DisplayConfig(), validate, container.Logger)

	// Ops endpoints
	router.GET("/health", healthHandler.Health)
	router.GET("/live", healthHandler.Live)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/version", healthHandler.Version)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger documentation (development only)
	if !cfg.IsProduction() {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/snapshot", crowdHandlers.GetSnapshot)
		v1.GET("/crowd", crowdHandlers.GetCrowd)
		v1.GET("/leaderboards/:period", crowdHandlers.GetLeaderboard)

		user := v1.Group("/user")
		{
			user.GET("", userHandlers.GetUser)
			user.PATCH("/settings", userHandlers.UpdateSettings)
		}
		v1.GET("/pricing", userHandlers.GetPricing)
		v1.GET("/config", userHandlers.GetConfig)

		agents := v1.Group("/agents")
		{
			agents.GET("", agentHandlers.ListAgents)
			agents.POST("", agentHandlers.CreateAgent)
			agents.GET("/:id", agentHandlers.GetAgent)
			agents.PATCH("/:id", agentHandlers.UpdateAgent)
			agents.DELETE("/:id", agentHandlers.DeleteAgent)
			agents.POST("/:id/trades", agentHandlers.ExecuteTrade)
			agents.GET("/:id/trades", agentHandlers.GetTrades)
			agents.POST("/:id/toggle", agentHandlers.ToggleAgent)
			agents.POST("/:id/safety/exit", agentHandlers.TriggerSafetyExit)
			agents.PATCH("/:id/safety/:exitId", agentHandlers.UpdateSafetyExit)
		}

		market := v1.Group("/market")
		{
			market.GET("", marketHandlers.GetMarkets)
			market.GET("/price/:id", marketHandlers.GetPrice)
			market.GET("/search", marketHandlers.SearchCoins)
			market.GET("/trending", marketHandlers.GetTrending)
			market.POST("/refresh", marketHandlers.Refresh)
		}

		v1.POST("/coach", coachHandlers.Ask)
		v1.GET("/coach", coachHandlers.History)

		if hub != nil {
			v1.GET("/ws", hub.Handle)
		}
	}

	return router
}
