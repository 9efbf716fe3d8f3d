package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedThing struct {
	ID    uint   `json:"id"`
	Label string `json:"label"`
}

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(mr.Addr())
	require.NoError(t, err)
	SetClient(c)
	t.Cleanup(func() {
		SetClient(nil)
		_ = c.Close()
	})
	return mr
}

func TestAside_FetchesOnceThenServesFromCache(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			calls++
			*dest = cachedThing{ID: 7, Label: "seven"}
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, Aside(ctx, AccountKey(7), &first, AccountTTL, fetch(&first)))
	assert.Equal(t, "seven", first.Label)
	assert.True(t, mr.Exists("account:7"))

	var second cachedThing
	require.NoError(t, Aside(ctx, AccountKey(7), &second, AccountTTL, fetch(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := withMiniredis(t)
	boom := errors.New("boom")

	var dest cachedThing
	err := Aside(context.Background(), AccountKey(1), &dest, AccountTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("account:1"))
}

func TestAside_NilClientPassesThrough(t *testing.T) {
	SetClient(nil)

	var dest cachedThing
	err := Aside(context.Background(), AccountKey(1), &dest, AccountTTL, func() error {
		dest.Label = "direct"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", dest.Label)
}

func TestAside_RedisDownFallsBackToFetch(t *testing.T) {
	mr := withMiniredis(t)
	mr.Close()

	var dest cachedThing
	err := Aside(context.Background(), AccountKey(2), &dest, AccountTTL, func() error {
		dest.Label = "db"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "db", dest.Label)
}

func TestInvalidateAccount(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("account:3", `{"id":3}`))

	InvalidateAccount(ctx, 3)
	assert.False(t, mr.Exists("account:3"))
	v, err := mr.Get("account:3:v")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
	assert.True(t, mr.TTL("account:3:v") > 0)
}

func TestAside_DropsFillWhenInvalidatedDuringFetch(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	// A writer commits and invalidates after the reader has loaded its copy.
	var stale cachedThing
	err := Aside(ctx, AccountKey(4), &stale, AccountTTL, func() error {
		stale = cachedThing{ID: 4, Label: "before write"}
		InvalidateAccount(ctx, 4)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "before write", stale.Label)
	assert.False(t, mr.Exists("account:4"))

	var fresh cachedThing
	require.NoError(t, Aside(ctx, AccountKey(4), &fresh, AccountTTL, func() error {
		fresh = cachedThing{ID: 4, Label: "after write"}
		return nil
	}))
	assert.True(t, mr.Exists("account:4"))

	var cached cachedThing
	require.NoError(t, Aside(ctx, AccountKey(4), &cached, AccountTTL, func() error {
		t.Fatal("expected a cache hit")
		return nil
	}))
	assert.Equal(t, "after write", cached.Label)
}

func TestAside_UnreadableEntryIsRefetched(t *testing.T) {
	mr := withMiniredis(t)
	require.NoError(t, mr.Set("account:5", "not json"))

	var dest cachedThing
	require.NoError(t, Aside(context.Background(), AccountKey(5), &dest, AccountTTL, func() error {
		dest = cachedThing{ID: 5, Label: "db"}
		return nil
	}))
	assert.Equal(t, "db", dest.Label)

	raw, err := mr.Get("account:5")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":5,"label":"db"}`, raw)
}

func TestNewClient_ParsesURL(t *testing.T) {
	c, err := NewClient("redis://localhost:6380/2")
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "localhost:6380", c.Options().Addr)
	assert.Equal(t, 2, c.Options().DB)

	_, err = NewClient("redis://%zz")
	assert.Error(t, err)
}

var _ redis.Hook = metricsHook{}
