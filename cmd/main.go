package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mikespro21/ARC/internal/api/handlers"
	"github.com/Mikespro21/ARC/internal/api/routes"
	"github.com/Mikespro21/ARC/internal/infrastructure/config"
	"github.com/Mikespro21/ARC/internal/infrastructure/di"
	"github.com/Mikespro21/ARC/pkg/graceful"
	"github.com/Mikespro21/ARC/pkg/logger"
	"github.com/Mikespro21/ARC/pkg/tracing"
)

// @title Crowdlike Engine API
// @version 1.7.0
// @description Paper-trading engine for user agents competing against a synthetic crowd

// @host localhost:8080
// @BasePath /api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer func() { _ = log.Sync() }()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		CollectorURL:   cfg.Tracing.CollectorURL,
		Environment:    cfg.Environment,
		ServiceVersion: config.AppVersion,
		SampleRate:     cfg.Tracing.SampleRate,
		Insecure:       cfg.Tracing.Insecure,
	}

	tracingShutdown, err := tracing.InitTracer(context.Background(), tracingConfig, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Build dependency injection container
	container, err := di.NewContainer(cfg, log)
	if err != nil {
		log.Fatal("Failed to create DI container", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := container.StartWorkers(ctx); err != nil {
		log.Fatal("Failed to start workers", "error", err)
	}
	log.Info("Background workers started",
		"market_refresh", cfg.Workers.MarketRefreshInterval,
		"portfolio_refresh", cfg.Workers.PortfolioRefreshInterval,
		"streak_schedule", cfg.Workers.StreakSchedule,
	)

	hub := handlers.NewStreamHub(
		container.GetAgentService(),
		container.GetMarketDataService(),
		cfg.Workers.StreamInterval,
		cfg.Server.AllowedOrigins,
		log.Zap().Named("stream"),
	)
	hub.Start(ctx)

	router := routes.SetupRoutes(container, hub)

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
			"demo_mode", cfg.DemoMode,
			"testnet_mode", cfg.TestnetMode,
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	shutdown := graceful.NewShutdownManager(server, log)
	shutdown.Register(hub)
	shutdown.Register(container)
	shutdown.OnClose(container.Close)
	shutdown.OnClose(func() error {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		return tracingShutdown(flushCtx)
	})

	shutdown.WaitForShutdown(ctx)
	log.Info("Server exited gracefully")
}
