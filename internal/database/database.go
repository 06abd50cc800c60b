package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Proton-105/tarot-bot/pkg/config"
)

const connectTimeout = 5 * time.Second

// Open connects to the configured backend, sizes the pool and verifies connectivity.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*sqlx.DB, error) {
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN())
	took := time.Since(start)
	if err != nil {
		log.Error("db connect failed",
			slog.String("driver", cfg.Driver),
			slog.Duration("duration", took),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	maxConns := cfg.MaxConns
	if cfg.Driver == config.DriverSQLite || maxConns <= 0 {
		// a single writer avoids SQLITE_BUSY under concurrent handlers
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	log.Info("db connected",
		slog.String("driver", cfg.Driver),
		slog.Int("pool_open", maxConns),
		slog.Duration("duration", took),
	)

	return db, nil
}
