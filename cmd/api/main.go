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
	"go.uber.org/zap"

	"github.com/you/railticket/internal/cache"
	"github.com/you/railticket/internal/cities"
	"github.com/you/railticket/internal/config"
	"github.com/you/railticket/internal/db"
	"github.com/you/railticket/internal/handlers"
	"github.com/you/railticket/internal/logger"
	"github.com/you/railticket/internal/metrics"
	"github.com/you/railticket/internal/models"
	"github.com/you/railticket/internal/repository"
	"github.com/you/railticket/internal/search"
	"github.com/you/railticket/internal/stations"
)

func main() {
	// Load base .env first, then .env.local (which overrides for local development)
	_ = godotenv.Load("../../.env")
	_ = godotenv.Overload("../../.env.local")

	cfg, err := config.Load()
	if err != nil {
		// logger level is part of the config, so fall back to a default one
		logger.New("info").Fatal("failed to load config", zap.Error(err))
	}

	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	dsn := cfg.DatabasePath
	if cfg.DBDriver == "postgres" {
		dsn = cfg.DatabaseURL
	}
	database, err := db.Open(cfg.DBDriver, dsn, log)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatal("failed to ensure schema", zap.Error(err))
	}

	metrics.Init(database.Conn(), log)

	stationRepo := repository.NewStationRepository(database)
	scheduleRepo := repository.NewScheduleRepository(database)
	cityRepo := repository.NewCityRepository(database)

	resolver := stations.NewResolver(stationRepo, cfg.StationAutoProvision, log)
	engine := search.NewEngine(
		resolver,
		scheduleRepo,
		search.NewGenerator(scheduleRepo, cfg.FallbackBatchSize, log),
		cache.New[*models.TicketPage](metrics.CacheTickets, cfg.CacheSize, cfg.CacheTTL, cache.StaleEmpty),
		cache.New[*models.AggregatedPage](metrics.CacheAggregated, cfg.CacheSize, cfg.CacheTTL, cache.StaleEmpty),
		search.Options{DefaultPageSize: cfg.DefaultPageSize, MaxPageSize: cfg.MaxPageSize},
		log,
	)
	directory := cities.NewDirectory(
		cityRepo,
		cache.New[*models.CityPage](metrics.CacheCities, cfg.CacheSize, cfg.CacheTTL, cache.ServeAll),
		cfg.DefaultPageSize,
		cfg.MaxPageSize,
	)

	router := handlers.NewRouter(
		handlers.NewTicketHandler(engine, log),
		handlers.NewCityHandler(directory, log),
		handlers.NewHealthHandler(database.Conn(), log),
		cfg.CORSOrigins,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	log.Info("API server starting",
		zap.String("port", cfg.Port),
		zap.String("driver", cfg.DBDriver),
		zap.Bool("stationAutoProvision", cfg.StationAutoProvision),
	)
	log.Info("Ticket endpoints: GET /v1/tickets, GET /v1/tickets/list")
	log.Info("City endpoints: GET /v1/departures, GET /v1/destinations")
	log.Info("Ops: GET /health, GET /healthz, GET /metrics")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed to start", zap.Error(err))
	}
	log.Info("server stopped")
}
