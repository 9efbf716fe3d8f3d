package database

import (
	"testing"

	"postbook/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool_SQLiteUsesSingleConnection(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &config.Config{
		DBHost:     "db",
		DBPort:     "5432",
		DBUser:     "app",
		DBPassword: "secret",
		DBName:     "postbook",
	}
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=postbook sslmode=disable", PostgresDSN(cfg))

	cfg.DBSSLMode = "require"
	assert.Contains(t, PostgresDSN(cfg), "sslmode=require")
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?_foreign_keys=on", SQLiteDSN(&config.Config{}))
	assert.Equal(t, "file::memory:?_foreign_keys=on", SQLiteDSN(&config.Config{DBName: ":memory:"}))
	assert.Equal(t, "file:dev.db?_foreign_keys=on&_busy_timeout=5000", SQLiteDSN(&config.Config{DBName: "dev.db"}))
}

func TestConnect_SQLite(t *testing.T) {
	db, err := Connect(&config.Config{DBDriver: DriverSQLite})
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, db.Dialector.Name())
	assert.Same(t, db, DB)
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}
