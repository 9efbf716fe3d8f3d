package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"postbook/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	AccountKeyPrefix = "account:%d"
)

const (
	AccountTTL = 30 * time.Second

	// versionTTL outlives any single cache fill.
	versionTTL = 10 * time.Minute
)

func AccountKey(accountID uint) string {
	return fmt.Sprintf(AccountKeyPrefix, accountID)
}

// Invalidate deletes key and bumps its version so in-flight fills are discarded.
func Invalidate(ctx context.Context, key string) {
	if client == nil {
		return
	}
	_, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(key))
		pipe.Expire(ctx, versionKey(key), versionTTL)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// InvalidateAccount drops the cached account, whose post_count just changed.
func InvalidateAccount(ctx context.Context, accountID uint) {
	Invalidate(ctx, AccountKey(accountID))
}
