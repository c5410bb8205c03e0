// Package main is the entry point for the NRIS interpretation service:
// HTTP API, PostgreSQL persistence, Redis report cache, LIS gateway and
// the maintenance scheduler wired together.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/AzizElGhezal/NRIS-sub000/internal/api"
	"github.com/AzizElGhezal/NRIS-sub000/internal/config"
	"github.com/AzizElGhezal/NRIS-sub000/internal/database"
	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
	"github.com/AzizElGhezal/NRIS-sub000/internal/events"
	"github.com/AzizElGhezal/NRIS-sub000/internal/overrides"
	"github.com/AzizElGhezal/NRIS-sub000/internal/reportcache"
	"github.com/AzizElGhezal/NRIS-sub000/internal/repository"
	"github.com/AzizElGhezal/NRIS-sub000/internal/service"
	"github.com/AzizElGhezal/NRIS-sub000/pkg/lis"
)

const migrationsPath = "migrations"

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting NRIS interpretation service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	databaseURL := configManager.GetDatabaseURL()

	// Migrations first so the pool connects to a current schema.
	runner, err := database.NewMigrationRunner(databaseURL, migrationsPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create migration runner")
	}
	if err := runner.Up(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}
	if err := runner.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close migration runner")
	}

	db, err := database.NewConnection(ctx, database.FromDatabaseConfig(&cfg.Database), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	records := repository.NewRecordRepository(db.Pool, logger)

	overrideStore, err := overrides.Open(cfg.Overrides, databaseURL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open override store")
	}
	defer overrideStore.Close()

	reports, err := reportcache.New(cfg.Cache)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to report cache")
	}
	defer reports.Close()

	bus, err := events.NewBus(cfg.Events, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create event bus")
	}
	defer bus.Close()

	lisClient, err := lis.NewClient(cfg.LIS, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create LIS client")
	}

	metrics := service.NewMetrics(prometheus.DefaultRegisterer)

	svc, err := service.NewInterpretationService(
		logger, records, overrideStore, reports, bus, lisClient, configManager, metrics)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create interpretation service")
	}

	scheduler := service.NewScheduler(logger, svc, cfg.Scheduler)
	if err := scheduler.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}
	defer scheduler.Stop()

	checks := []api.HealthCheck{
		{Name: "database", Check: db.Health},
		{Name: "report_cache", Check: func(ctx context.Context) error {
			if err := reports.Ping(ctx); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrCacheConnection, err)
			}
			return nil
		}},
		{Name: "lis", Check: func(ctx context.Context) error {
			if lisClient.State() == gobreaker.StateOpen {
				return fmt.Errorf("%w: circuit breaker open", domain.ErrLISUnavailable)
			}
			return nil
		}},
	}

	server := api.NewServer(cfg, logger, svc, bus, checks)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Output == "file" && cfg.Filename != "" {
		file, err := os.OpenFile(cfg.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger.WithError(err).Warn("Could not open log file, using stdout")
		} else {
			logger.SetOutput(file)
		}
	}

	return logger
}
