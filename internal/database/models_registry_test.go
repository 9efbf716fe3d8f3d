package database

import (
	"testing"

	modelspkg "postbook/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_AccountsBeforePosts(t *testing.T) {
	list := PersistentModels()
	require.Len(t, list, 2)
	_, ok := list[0].(*modelspkg.Account)
	require.True(t, ok, "accounts must be migrated first")
	_, ok = list[1].(*modelspkg.Post)
	require.True(t, ok)
}
