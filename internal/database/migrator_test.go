package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/tarot-bot/pkg/config"
)

func TestListMigrations(t *testing.T) {
	for _, driver := range []string{config.DriverPostgres, config.DriverSQLite} {
		names, err := ListMigrations(migrationsFS, migrationsDir(driver))
		require.NoError(t, err)
		assert.Equal(t, []string{"000001_init.up.sql"}, names, driver)
	}
}

func TestMigrationURL(t *testing.T) {
	pg := config.DatabaseConfig{
		Driver:   config.DriverPostgres,
		Host:     "db",
		Port:     "5432",
		User:     "bot",
		Password: "p@ss",
		Name:     "tarot",
		SSLMode:  "disable",
	}
	assert.Equal(t, "postgres://bot:p%40ss@db:5432/tarot?sslmode=disable", migrationURL(pg))

	lite := config.DatabaseConfig{Driver: config.DriverSQLite, Path: "/tmp/bot.db"}
	assert.Equal(t, "sqlite:///tmp/bot.db", migrationURL(lite))
}

func TestMigratorUp_SQLite(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "bot.db"),
	}

	m := NewMigrator(cfg, nil)
	require.NoError(t, m.Up())
	// second run is a no-op
	require.NoError(t, m.Up())

	db, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var tables []string
	require.NoError(t, db.Select(&tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ('users', 'questions') ORDER BY name`))
	assert.Equal(t, []string{"questions", "users"}, tables)
}
