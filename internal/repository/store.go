package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that share one database handle. Repositories
// obtained from the Store passed to Transaction's callback run inside that
// transaction.
type Store interface {
	Accounts() AccountRepository
	Posts() PostRepository
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db   *gorm.DB
	inTx bool
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Accounts() AccountRepository {
	return &accountRepository{db: s.db, cached: !s.inTx}
}

func (s *gormStore) Posts() PostRepository {
	return &postRepository{db: s.db}
}

// Transaction runs fn in a database transaction. Returning an error from fn
// rolls back every write made through tx. Nested calls use savepoints.
func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, inTx: true})
	})
}
