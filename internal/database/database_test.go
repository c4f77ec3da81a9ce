package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"vr-datastreamer/internal/config"
)

func newSQLite(t *testing.T) *DB {
	t.Helper()

	cfg := &config.CatalogConfig{
		Enabled:      true,
		Driver:       DriverSQLite,
		DSN:          "file:" + filepath.Join(t.TempDir(), "catalog.db"),
		MaxOpenConns: 1,
	}
	db, err := NewConnection(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationsUpAndDown(t *testing.T) {
	db := newSQLite(t)
	migrator := NewMigrator(db, zaptest.NewLogger(t))

	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Up())

	version, dirty, err = migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM recording_sessions").Scan(&count))
	assert.Zero(t, count)

	require.NoError(t, migrator.Down())
	_, err = db.Exec("SELECT COUNT(*) FROM recording_sessions")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	sqliteDB := &DB{driver: DriverSQLite}
	postgresDB := &DB{driver: DriverPostgres}

	query := "UPDATE t SET a = ?, b = ? WHERE id = ?"
	assert.Equal(t, query, sqliteDB.Rebind(query))
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE id = $3", postgresDB.Rebind(query))
}

func TestHealthCheckAndStats(t *testing.T) {
	db := newSQLite(t)

	require.NoError(t, db.HealthCheck(context.Background()))
	stats := db.GetStats()
	assert.Equal(t, DriverSQLite, stats["driver"])
}

func TestNewConnectionRejectsUnknownDriver(t *testing.T) {
	_, err := NewConnection(&config.CatalogConfig{Driver: "mysql", DSN: "x"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
