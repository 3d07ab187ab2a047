package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/citydirectory/directory-backend/api/routes"
	"github.com/citydirectory/directory-backend/internal/businesses"
	"github.com/citydirectory/directory-backend/internal/reviews"
	"github.com/citydirectory/directory-backend/internal/search"
	"github.com/citydirectory/directory-backend/internal/taxonomy"
	"github.com/citydirectory/directory-backend/pkg/config"
	"github.com/citydirectory/directory-backend/pkg/db"
	"github.com/citydirectory/directory-backend/pkg/logger"
	"github.com/citydirectory/directory-backend/pkg/metrics"
	"github.com/citydirectory/directory-backend/pkg/migrate"
	"github.com/citydirectory/directory-backend/pkg/outbox"
	"github.com/citydirectory/directory-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if redis.Configured(cfg.Redis) {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured; search cache and rate limits disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	services, err := buildServices(cfg, logg, dbClient, redisClient, registry)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, registry, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (routes.Services, error) {
	conn := dbClient.DB()
	taxonomyRepo := taxonomy.NewRepository(conn)
	searchRepo := search.NewRepository(conn)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	searchParams := search.ServiceParams{
		Repo:     searchRepo,
		Taxonomy: taxonomyRepo,
		Metrics:  metrics.NewSearchMetrics(reg),
		Logger:   logg,
		Config:   cfg.Search,
	}
	businessParams := businesses.ServiceParams{
		Repo:        businesses.NewRepository(conn),
		Tx:          dbClient,
		Outbox:      outboxSvc,
		Taxonomy:    taxonomyRepo,
		Ratings:     searchRepo,
		Metrics:     metrics.NewModerationMetrics(reg),
		Logger:      logg,
		IncludeTest: cfg.Search.IncludeTestListings,
	}
	reviewParams := reviews.ServiceParams{
		Repo:        reviews.NewRepository(conn),
		Tx:          dbClient,
		Outbox:      outboxSvc,
		Logger:      logg,
		IncludeTest: cfg.Search.IncludeTestListings,
	}
	// a nil client must not reach the optional interfaces as a typed nil
	if redisClient != nil {
		searchParams.Cache = search.NewCache(redisClient, cfg.Search.CacheTTL)
		businessParams.Invalidator = redisClient
		reviewParams.Invalidator = redisClient
	}

	searchSvc, err := search.NewService(searchParams)
	if err != nil {
		return routes.Services{}, err
	}
	businessSvc, err := businesses.NewService(businessParams)
	if err != nil {
		return routes.Services{}, err
	}
	reviewSvc, err := reviews.NewService(reviewParams)
	if err != nil {
		return routes.Services{}, err
	}
	taxonomySvc, err := taxonomy.NewService(taxonomyRepo)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Search:     searchSvc,
		Businesses: businessSvc,
		Reviews:    reviewSvc,
		Taxonomy:   taxonomySvc,
	}, nil
}
