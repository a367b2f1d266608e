// Package app assembles the pipeline services from configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/rpggio/flowscribe/internal/config"
	"github.com/rpggio/flowscribe/internal/domain/activity"
	"github.com/rpggio/flowscribe/internal/domain/flow"
	"github.com/rpggio/flowscribe/internal/domain/script"
	"github.com/rpggio/flowscribe/internal/domain/session"
	"github.com/rpggio/flowscribe/internal/domain/validation"
	"github.com/rpggio/flowscribe/internal/events"
	"github.com/rpggio/flowscribe/internal/pipeline"
	"github.com/rpggio/flowscribe/internal/sqlite"
)

// App owns the database, the event bus and the services built on them.
type App struct {
	DB       *sqlite.DB
	Bus      *events.Bus
	Activity *activity.Service
	Studio   *pipeline.Studio
}

// Open prepares the database, seeds the flow catalog and wires the services.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	langs, err := cfg.Languages()
	if err != nil {
		return nil, err
	}

	if cfg.DB.Path != ":memory:" && cfg.DB.Path != "" {
		if err := ensureDir(cfg.DB.Path); err != nil {
			return nil, fmt.Errorf("preparing database path: %w", err)
		}
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	bus := events.NewBus(cfg.Events.QueueSize, logger)
	audit := activity.NewService(sqlite.NewActivityRepository(db), logger)
	bus.Handle(audit.Record)

	flows := flow.NewService(sqlite.NewFlowRepository(db), bus, logger)
	if err := flows.SeedCatalog(ctx); err != nil {
		bus.Close()
		db.Close()
		return nil, err
	}

	library := script.NewLibrary()
	sessions := session.NewService(session.Options{
		MaxDuration:   cfg.Recording.MaxDuration,
		RecentActions: cfg.Recording.RecentActions,
	}, bus, logger)
	studio := pipeline.New(
		sessions,
		flows,
		script.NewService(library, langs, bus, logger),
		validation.NewService(library, validation.StaticChecker, bus, logger),
		pipeline.Timeouts{
			Stop:       cfg.Timeouts.Stop,
			Classify:   cfg.Timeouts.Classify,
			Synthesize: cfg.Timeouts.Synthesize,
			Validate:   cfg.Timeouts.Validate,
		},
		logger,
	)

	logger.Info("pipeline ready", "db", cfg.DB.Path, "languages", langs, "max_duration", cfg.Recording.MaxDuration)
	return &App{DB: db, Bus: bus, Activity: audit, Studio: studio}, nil
}

// Close flushes pending events to the activity log and closes the database.
func (a *App) Close() error {
	a.Bus.Close()
	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}
