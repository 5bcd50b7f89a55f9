// Package app wires every component of the engine together.
// app.go is the composition root: it opens the store, builds the
// repositories and services, and assembles the HTTP server and the
// scheduler.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"civicpulse.app/engagement/internal/alerts"
	"civicpulse.app/engagement/internal/api"
	"civicpulse.app/engagement/internal/config"
	"civicpulse.app/engagement/internal/db/badgerdb"
	"civicpulse.app/engagement/internal/db/postgres"
	"civicpulse.app/engagement/internal/features/activity"
	"civicpulse.app/engagement/internal/features/engagement"
	"civicpulse.app/engagement/internal/features/moderation"
	"civicpulse.app/engagement/internal/jobs"
)

// ErrModerationDisabled is returned by Sweep when FEATURE_MODERATION_ENABLED is off.
var ErrModerationDisabled = errors.New("moderation is disabled")

// App holds all components of the engine.
type App struct {
	cfg *config.Config

	Scoring    *engagement.Service
	Moderation *moderation.Service // nil when moderation is disabled
	Activity   *activity.Service
	Server     *api.Server
	Scheduler  *jobs.Scheduler // nil when moderation is disabled

	pool  *pgxpool.Pool
	store *badgerdb.DB
}

// repositories is one storage backend's set of repositories.
type repositories struct {
	scoring    engagement.Repository
	moderation moderation.Repository
	activity   activity.Repository
	health     func(ctx context.Context) error
}

// New creates and initializes the engine. The order matters: components
// depend on each other.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	// === 1. Storage ===
	repos, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	// === 2. Badge catalog ===
	evaluator, err := engagement.NewEvaluator(engagement.BadgeCatalog)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("compile badge catalog: %w", err)
	}

	// === 3. Services ===
	a.Activity = activity.NewService(repos.activity)
	a.Scoring = engagement.NewService(repos.scoring, evaluator, a.Activity, cfg.LeaderboardMaxLimit)

	if cfg.FeatureModerationEnabled {
		reporter, err := newReporter(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Moderation = moderation.NewService(repos.moderation, a.Scoring, a.Activity, reporter,
			moderation.ThresholdsFromConfig(cfg))

		// === 4. Scheduler ===
		a.Scheduler = jobs.NewScheduler(cfg, a.Moderation)
	}

	// === 5. HTTP ===
	a.Server = api.NewServer(cfg, api.Deps{
		Scoring:    a.Scoring,
		Moderation: a.Moderation,
		Activity:   a.Activity,
		Health:     repos.health,
	})

	log.WithFields(log.Fields{
		"store":      cfg.StoreDriver,
		"moderation": cfg.FeatureModerationEnabled,
		"alerts":     cfg.AlertsEnabled(),
		"badges":     len(engagement.BadgeCatalog),
	}).Info("Engine initialized")
	return a, nil
}

func (a *App) openStore(ctx context.Context) (*repositories, error) {
	switch a.cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := postgres.NewPool(ctx, a.cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := postgres.RunMigrations(ctx, pool, migrations); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.pool = pool
		return &repositories{
			scoring:    engagement.NewPostgresRepository(pool),
			moderation: moderation.NewPostgresRepository(pool),
			activity:   activity.NewPostgresRepository(pool),
			health:     pool.Ping,
		}, nil

	case config.StoreDriverBadger:
		db, err := badgerdb.Open(a.cfg)
		if err != nil {
			return nil, err
		}
		a.store = db
		return &repositories{
			scoring:    engagement.NewBadgerRepository(db),
			moderation: moderation.NewBadgerRepository(db),
			activity:   activity.NewBadgerRepository(db),
			health: func(context.Context) error {
				if db.IsClosed() {
					return errors.New("badger store closed")
				}
				return nil
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", a.cfg.StoreDriver)
}

// newReporter returns the sweep reporter, or a nil interface when alerts
// are off.
func newReporter(cfg *config.Config) (moderation.SweepReporter, error) {
	if !cfg.AlertsEnabled() {
		return nil, nil
	}
	alerter, err := alerts.NewTelegramAlerter(cfg.TelegramAlertToken, cfg.TelegramAlertChatID, cfg.AppEnv)
	if err != nil {
		return nil, fmt.Errorf("create telegram alerter: %w", err)
	}
	return alerter, nil
}

// Run serves HTTP and runs the scheduled sweep until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.Scheduler != nil {
		if err := a.Scheduler.Start(ctx); err != nil {
			return err
		}
		defer a.Scheduler.Stop()
	}

	return a.Server.Run(ctx)
}

// Sweep runs a single moderation pass, for the sweep command.
func (a *App) Sweep(ctx context.Context) (*moderation.SweepReport, error) {
	if a.Moderation == nil {
		return nil, ErrModerationDisabled
	}
	return a.Moderation.RunAutoModeration(ctx)
}

// Close releases the store.
func (a *App) Close() {
	if a.Server != nil {
		a.Server.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.WithError(err).Error("Failed to close embedded store")
		}
	}
}

// Migrate applies the schema migrations and exits. The embedded store needs
// none.
func Migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.StoreDriver != config.StoreDriverPostgres {
		log.WithField("store", cfg.StoreDriver).Info("Store has no schema, nothing to migrate")
		return nil
	}
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return postgres.RunMigrations(ctx, pool, migrations)
}
