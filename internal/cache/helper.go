package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"postbook/internal/middleware"
	"postbook/internal/observability"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// versionKey holds a counter bumped by every invalidation of key.
func versionKey(key string) string {
	return key + ":v"
}

// Aside tries Redis first and on a miss calls fetch, which must populate dest,
// then stores dest with ttl. The fill is dropped when key was invalidated
// while fetch ran, so a slow reader never overwrites a newer write with its
// older copy. Cache failures degrade to a plain fetch.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if client == nil {
		return fetch()
	}

	spanCtx, span := observability.StartCacheSpan(ctx, "aside", key)
	var (
		fetched  bool
		fetchErr error
	)
	err := client.Watch(spanCtx, func(tx *redis.Tx) error {
		raw, err := tx.Get(spanCtx, key).Bytes()
		switch {
		case err == nil:
			if err := json.Unmarshal(raw, dest); err == nil {
				return nil
			}
			middleware.Logger.WarnContext(ctx, "cache entry unreadable", slog.String("key", key))
		case !errors.Is(err, redis.Nil):
			return err
		}

		fetched = true
		if fetchErr = fetch(); fetchErr != nil {
			return nil
		}
		payload, err := json.Marshal(dest)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(spanCtx, func(pipe redis.Pipeliner) error {
			pipe.Set(spanCtx, key, payload, ttl)
			return nil
		})
		return err
	}, versionKey(key))
	if errors.Is(err, redis.TxFailedErr) {
		span.SetAttributes(attribute.Bool("postbook.cache_fill_dropped", true))
		observability.EndSpan(span, nil)
	} else {
		observability.EndSpan(span, err)
	}

	switch {
	case fetchErr != nil:
		return fetchErr
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		middleware.Logger.DebugContext(ctx, "cache fill skipped, entry invalidated during load", slog.String("key", key))
		return nil
	case fetched:
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		return nil
	default:
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		return fetch()
	}
}
