// Package bootstrap wires the process-wide runtime dependencies shared by the
// server and the command line tools.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"postbook/internal/cache"
	"postbook/internal/config"
	"postbook/internal/database"
	"postbook/internal/middleware"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipSchema leaves the schema untouched (cmd/migrate manages it itself).
	SkipSchema bool
	// SkipRedis runs without cache, rate limiting or events.
	SkipRedis bool
}

// InitRuntime connects to the database, brings the schema up to date and
// connects Redis. An unreachable Redis is not an error; the returned client
// is nil and the application runs without cache.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if !opts.SkipSchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			closeDB(db)
			return nil, nil, fmt.Errorf("schema setup failed: %w", err)
		}
	}

	if opts.SkipRedis {
		cache.SetClient(nil)
		return db, nil, nil
	}

	cache.InitRedis(cfg.RedisURL)
	return db, cache.GetClient(), nil
}

// Close releases the connections returned by InitRuntime.
func Close(db *gorm.DB, rdb *redis.Client) {
	closeDB(db)
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			middleware.Logger.Warn("error closing redis", slog.String("error", err.Error()))
		}
	}
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			middleware.Logger.Warn("error closing sql DB", slog.String("error", err.Error()))
		}
	}
}
