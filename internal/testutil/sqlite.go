// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"testing"

	"postbook/internal/database"
	"postbook/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLiteDB returns a private in-memory SQLite database with foreign keys
// enforced and the application schema migrated. The pool is pinned to one
// connection so the in-memory database lives as long as the test.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open("file::memory:?_foreign_keys=on"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// SeedAccount inserts an account directly, bypassing the coordinator.
func SeedAccount(t testing.TB, db *gorm.DB, name, contact string) *models.Account {
	t.Helper()
	acct := &models.Account{Name: name, ContactNumber: contact, Location: "Somewhere"}
	require.NoError(t, db.Create(acct).Error)
	return acct
}

// SetPostCount overwrites an account's counter to simulate drift.
func SetPostCount(t testing.TB, db *gorm.DB, accountID uint, n int64) {
	t.Helper()
	require.NoError(t, db.Model(&models.Account{}).Where("id = ?", accountID).
		UpdateColumn("post_count", n).Error)
}

// CountPosts returns the true number of posts referencing accountID.
func CountPosts(t testing.TB, db *gorm.DB, accountID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Post{}).Where("account_id = ?", accountID).Count(&n).Error)
	return n
}
