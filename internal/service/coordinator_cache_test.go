package service

import (
	"context"
	"sync/atomic"
	"testing"

	"postbook/internal/cache"
	"postbook/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func useMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewClient(mr.Addr())
	require.NoError(t, err)
	cache.SetClient(c)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = c.Close()
	})
	return mr
}

func TestCoordinator_ReadRacingWriteDoesNotCacheStaleCount(t *testing.T) {
	mr := useMiniredis(t)
	c, db := newSQLiteCoordinator(t)
	ctx := context.Background()

	account := mustCreateAccount(t, c, "0700")

	// Commit a post between the reader's account load and its cache fill.
	var armed atomic.Bool
	var writeErr error
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:interleave_write", func(tx *gorm.DB) {
		if tx.Statement.Table != "accounts" || !armed.CompareAndSwap(true, false) {
			return
		}
		_, writeErr = c.CreatePost(context.Background(), CreatePostInput{
			AccountID: account.ID, Title: "Title", Description: "Body",
		})
	}))

	armed.Store(true)
	first, err := c.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	require.NoError(t, writeErr)
	assert.Zero(t, first.PostCount)
	assert.False(t, mr.Exists(cache.AccountKey(account.ID)))

	var stored models.Account
	require.NoError(t, db.First(&stored, account.ID).Error)
	require.Equal(t, int64(1), stored.PostCount)

	second, err := c.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.PostCount, second.PostCount)
	assert.True(t, mr.Exists(cache.AccountKey(account.ID)))

	listed, err := c.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, second.PostCount, listed[0].PostCount)
}

func TestCoordinator_WritesInvalidateCachedAccount(t *testing.T) {
	useMiniredis(t)
	c, _ := newSQLiteCoordinator(t)
	ctx := context.Background()

	account := mustCreateAccount(t, c, "0701")
	assert.Zero(t, postCount(t, c, account.ID))

	post := mustCreatePost(t, c, account.ID)
	assert.Equal(t, int64(1), postCount(t, c, account.ID))

	require.NoError(t, c.DeletePost(ctx, DeletePostInput{AccountID: account.ID, PostID: post.ID}))
	assert.Zero(t, postCount(t, c, account.ID))
}
