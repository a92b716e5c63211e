package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/etxebila/internal/adapters/http"
	natsadapter "github.com/samirrijal/etxebila/internal/adapters/nats"
	"github.com/samirrijal/etxebila/internal/adapters/postgres"
	"github.com/samirrijal/etxebila/internal/adapters/searchindex"
	"github.com/samirrijal/etxebila/internal/adapters/valkey"
	"github.com/samirrijal/etxebila/internal/core/ports"
	"github.com/samirrijal/etxebila/internal/core/usecases"
	"github.com/samirrijal/etxebila/internal/pkg/config"
	"github.com/samirrijal/etxebila/internal/pkg/logging"
	"github.com/samirrijal/etxebila/internal/pkg/metrics"
	"github.com/samirrijal/etxebila/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("etxebila-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go reportPoolStats(ctx, db)

	// Search index
	index, err := searchindex.NewClient(searchindex.Config{
		Endpoint:             cfg.Search.Endpoint,
		APIKey:               cfg.Search.APIKey,
		Timeout:              cfg.Search.Timeout(),
		PropertiesCollection: cfg.Search.PropertiesCollection,
		LocationsCollection:  cfg.Search.LocationsCollection,
		LocationQueryBy:      cfg.Search.LocationQueryBy,
	}, nil)
	if err != nil {
		log.Fatalf("search index: %v", err)
	}

	deps := &http.Dependencies{
		DB:          db,
		Version:     version,
		RateLimit:   cfg.Server.RateLimit,
		OpenAPIPath: http.DefaultOpenAPIPath,
	}

	// Cache is optional: sessions run without fallback pages and location
	// lookups go straight to Postgres.
	var cache ports.CacheService
	vc, err := valkey.New(valkey.Options{Addr: cfg.Valkey.Addr, Password: cfg.Valkey.Password, DB: cfg.Valkey.DB})
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		cache = vc
		deps.Cache = vc
	}

	// NATS is optional: session events are dropped and cached locations
	// expire by TTL only.
	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		events = pub
		deps.NATS = pub.Conn()
	}

	locationRepo := postgres.NewLocationRepo(db)
	planner := usecases.NewFilterPlanner(cfg.PlannerConfig())
	locationSvc := usecases.NewLocationService(locationRepo, index, cache)
	searchSvc := usecases.NewSearchService(locationSvc, index, planner, cache, events, cfg.OrchestratorConfig())
	deps.Locations = locationSvc
	deps.Search = searchSvc

	if events != nil {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("location update subscriber unavailable", "error", err)
		} else {
			defer sub.Close()
			if err := sub.SubscribeLocationUpdates(ctx, locationSvc.Invalidate); err != nil {
				slog.Warn("subscribe location updates", "error", err)
			}
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Etxebila API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.etxebila.eus",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, If-None-Match",
		ExposeHeaders:    "ETag, Link, X-Request-Id",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "version", version)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		case <-ctx.Done():
			return
		}
	}
}
