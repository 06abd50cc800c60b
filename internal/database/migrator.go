// Package database provides connection and migration helpers for the question store.
package database

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/Proton-105/tarot-bot/pkg/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded schema for the configured driver.
type Migrator struct {
	cfg config.DatabaseConfig
	log *slog.Logger
}

// NewMigrator constructs a Migrator that logs through the provided logger instance.
func NewMigrator(cfg config.DatabaseConfig, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}

	return &Migrator{
		cfg: cfg,
		log: log.With(slog.String("component", "db.migrate"), slog.String("driver", cfg.Driver)),
	}
}

// Up applies all pending up migrations. An up-to-date schema is not an error.
func (m *Migrator) Up() error {
	dir := migrationsDir(m.cfg.Driver)

	files, err := ListMigrations(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	mg, err := migrate.NewWithSourceInstance("iofs", src, migrationURL(m.cfg))
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := mg.Close(); srcErr != nil || dbErr != nil {
			m.log.Warn("close migrator", slog.Any("source_error", srcErr), slog.Any("db_error", dbErr))
		}
	}()

	fromVer, _, _ := mg.Version()

	start := time.Now()
	upErr := mg.Up()
	took := time.Since(start)

	if errors.Is(upErr, migrate.ErrNoChange) {
		m.log.Info("schema up to date", slog.Uint64("version", uint64(fromVer)), slog.Duration("duration", took))
		return nil
	}
	if upErr != nil {
		m.log.Error("migration failed", slog.Any("error", upErr), slog.Duration("duration", took))
		return fmt.Errorf("apply migrations: %w", upErr)
	}

	toVer, _, _ := mg.Version()
	m.log.Info("migrations applied",
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files_total", len(files)),
		slog.Duration("duration", took),
	)

	return nil
}

func migrationsDir(driver string) string {
	if driver == config.DriverPostgres {
		return "migrations/postgres"
	}
	return "migrations/sqlite"
}

func migrationURL(cfg config.DatabaseConfig) string {
	if cfg.Driver == config.DriverSQLite {
		return "sqlite://" + cfg.Path
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": []string{cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

func isUpMigration(name string) bool {
	return strings.HasSuffix(name, ".up.sql")
}

// ListMigrations returns all .up.sql files in root in lexical order.
func ListMigrations(dir fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(dir, root)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isUpMigration(e.Name()) {
			names = append(names, path.Base(e.Name()))
		}
	}

	sort.Strings(names)

	return names, nil
}
