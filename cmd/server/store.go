package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rpggio/weekly/internal/config"
	"github.com/rpggio/weekly/internal/domain/activity"
	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/postgres"
	"github.com/rpggio/weekly/internal/sqlite"
)

type apiKeyStore interface {
	Add(ctx context.Context, token, userID, description string) error
	ResolveUser(ctx context.Context, token string) (string, error)
}

type store struct {
	timetables timetable.Repository
	activity   activity.Repository
	keys       apiKeyStore
	close      func()
}

func openStore(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*store, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("using postgres store")
		return &store{
			timetables: postgres.NewTimetableRepository(pool),
			activity:   postgres.NewActivityRepository(pool),
			keys:       postgres.NewAPIKeyRepository(pool),
			close:      pool.Close,
		}, nil
	case "sqlite":
		if err := ensureDBDir(cfg.Path); err != nil {
			return nil, fmt.Errorf("prepare database path: %w", err)
		}
		db, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("using sqlite store", "path", cfg.Path)
		return &store{
			timetables: sqlite.NewTimetableRepository(db),
			activity:   sqlite.NewActivityRepository(db),
			keys:       sqlite.NewAPIKeyRepository(db),
			close:      func() { _ = db.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
}
