package main

import (
	"context"
	"fmt"

	"github.com/fossbin/propease/internal/billing"
	"github.com/fossbin/propease/internal/config"
	"github.com/fossbin/propease/internal/database"
	"github.com/fossbin/propease/internal/events"
	"github.com/fossbin/propease/internal/logger"
	"github.com/fossbin/propease/internal/repository"
	"github.com/fossbin/propease/internal/services"
)

// app holds what every subcommand needs: configuration, a logger and an open store.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	store repository.Store
}

// bootstrap loads configuration and opens the configured store.
// Postgres schemas are migrated up first when STORE_AUTO_MIGRATE is set.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.New(cfg.Server.Env)

	a := &app{cfg: cfg, log: log}
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := database.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			log.Error("Failed to connect to database", err, logger.Fields{
				"host": cfg.Database.Host,
				"port": cfg.Database.Port,
				"name": cfg.Database.Name,
			})
			return nil, err
		}
		log.Info("Database connection established", logger.Fields{
			"host":     cfg.Database.Host,
			"database": cfg.Database.Name,
			"pool_min": cfg.Database.PoolMin,
			"pool_max": cfg.Database.PoolMax,
		})

		if cfg.Store.AutoMigrate {
			version, err := db.Migrate(database.Up, cfg.Store.MigrationsDir)
			if err != nil {
				db.Close()
				return nil, err
			}
			log.Info("Schema migrated", logger.Fields{"version": version})
		}
		a.store = repository.NewPostgresStore(db)
	default:
		log.Warn("Using in-memory store; data is lost on exit", nil)
		a.store = repository.NewMemoryStore()
	}
	return a, nil
}

// services wires the service layer over the app's store.
func (a *app) newServices(publisher events.Publisher) *services.Services {
	return services.New(services.Dependencies{
		Store:  a.store,
		Events: publisher,
		Log:    a.log,
		Billing: billing.Policy{
			GraceDays:          a.cfg.Billing.GraceDays,
			LateFeeBasisPoints: a.cfg.Billing.LateFeeBasisPoints,
		},
		ZScoreThreshold: a.cfg.Analytics.ZScoreThreshold,
	})
}

func (a *app) dispatcherOptions() events.DispatcherOptions {
	return events.DispatcherOptions{
		BufferSize:  a.cfg.Events.BufferSize,
		MaxAttempts: a.cfg.Events.MaxAttempts,
		RetryDelay:  a.cfg.Events.RetryDelay,
	}
}

func (a *app) close() {
	a.store.Close()
}
