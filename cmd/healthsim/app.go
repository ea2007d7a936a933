package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ausphi/healthsim/internal/shared/config"
	"github.com/ausphi/healthsim/internal/shared/database"
	"github.com/ausphi/healthsim/internal/shared/events"
	"github.com/ausphi/healthsim/internal/shared/logging"
	"github.com/ausphi/healthsim/internal/shared/metrics"
	"github.com/ausphi/healthsim/internal/shared/random"
	"github.com/ausphi/healthsim/internal/simulation"
	"github.com/ausphi/healthsim/internal/storage"
	"github.com/ausphi/healthsim/internal/storage/memstore"
	"github.com/ausphi/healthsim/internal/storage/sqlstore"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	seed     uint64
	strict   bool
	logLevel string
}

// App holds all application dependencies
type App struct {
	Config *config.Config
	Log    zerolog.Logger
	DB     database.Store // nil with the memory driver
	Repo   storage.Repository
	Events events.Publisher
	Src    *random.Source
}

// newApp loads configuration and connects the store and event publisher.
// An unreachable KurrentDB is not fatal; events are then dropped.
func newApp(ctx context.Context, flags *globalFlags) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.seed != 0 {
		cfg.Simulation.Seed = flags.seed
	}
	if flags.strict {
		cfg.Simulation.Strict = true
	}

	app := &App{Config: cfg, Log: logging.New(cfg.Log.Level, cfg.Log.Format)}

	if cfg.Simulation.Seed != 0 {
		app.Src = random.New(cfg.Simulation.Seed)
	} else {
		app.Src = random.NewTimeSeeded()
	}

	if cfg.Database.Driver == "memory" {
		app.Repo = memstore.New()
		app.Log.Warn().Msg("using in-memory store, nothing will be persisted")
	} else {
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		db, err := database.Open(connectCtx, cfg.Database.Driver, cfg.Database.DSN(), cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		app.DB = db
		app.Repo = sqlstore.New(db)
		app.Log.Info().Str("driver", cfg.Database.Driver).Str("host", cfg.Database.Host).Msg("connected to database")
	}

	pub, err := events.Open(cfg.KurrentDB)
	if err != nil {
		app.Log.Warn().Err(err).Msg("KurrentDB not available, running without event streaming")
		pub = events.Nop{}
	}
	app.Events = pub
	return app, nil
}

// Simulation builds a simulation over the app's store.
func (a *App) Simulation() *simulation.Simulation {
	return simulation.New(a.Repo, a.Src,
		simulation.WithLogger(a.Log),
		simulation.WithPublisher(a.Events),
		simulation.WithStrictMode(a.Config.Simulation.Strict),
	)
}

// pushMetrics sends the run's metrics to the Pushgateway when one is configured.
func (a *App) pushMetrics() {
	if err := metrics.Push(a.Config.Metrics.PushgatewayURL, a.Config.Metrics.JobName); err != nil {
		a.Log.Warn().Err(err).Msg("failed to push metrics")
	}
}

// Close releases the store and publisher.
func (a *App) Close() {
	a.Events.Close()
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn().Err(err).Msg("failed to close database")
		}
	}
}

// sqlStore returns the database store or an error for the memory driver.
func (a *App) sqlStore() (database.Store, error) {
	if a.DB == nil {
		return nil, fmt.Errorf("command requires DB_DRIVER=sqlserver or postgres, not %s", a.Config.Database.Driver)
	}
	return a.DB, nil
}
