// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"time"

	"postbook/internal/cache"
	"postbook/internal/models"
	"postbook/internal/observability"

	"gorm.io/gorm"
)

// ErrCounterUnderflow is returned when a decrement would push post_count below zero.
var ErrCounterUnderflow = errors.New("post_count would become negative")

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uint) (*models.Account, error)
	GetByContactNumber(ctx context.Context, contactNumber string) (*models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
	IncrementPostCount(ctx context.Context, id uint, delta int64) error
	RecountPosts(ctx context.Context, id uint) (int64, error)
	ReconcileAll(ctx context.Context) (int64, error)
}

type accountRepository struct {
	db     *gorm.DB
	cached bool
}

// NewAccountRepository returns a new AccountRepository implementation.
// Reads by id go through the Redis cache when one is configured.
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db, cached: true}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	account.ID = 0
	account.PostCount = 0
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewDuplicateContactError(account.ContactNumber)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	load := func() error {
		if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewAccountNotFoundError(id)
			}
			return models.NewInternalError(err)
		}
		return nil
	}

	var err error
	if r.cached {
		err = cache.Aside(ctx, cache.AccountKey(id), &account, cache.AccountTTL, load)
	} else {
		err = load()
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetByContactNumber(ctx context.Context, contactNumber string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("contact_number = ?", contactNumber).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &account, nil
}

func (r *accountRepository) List(ctx context.Context) ([]models.Account, error) {
	accounts := []models.Account{}
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&accounts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return accounts, nil
}

// IncrementPostCount adds delta to post_count in a single UPDATE so concurrent
// callers never lose an update. Decrements are guarded and fail with
// ErrCounterUnderflow instead of writing a negative value.
func (r *accountRepository) IncrementPostCount(ctx context.Context, id uint, delta int64) (err error) {
	if delta == 0 {
		return nil
	}

	ctx, span := observability.StartStoreSpan(ctx, "accounts", "IncrementPostCount")
	defer func() { observability.EndSpan(span, err) }()

	q := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id)
	if delta < 0 {
		q = q.Where("post_count + ? >= 0", delta)
	}

	res := q.UpdateColumns(map[string]interface{}{
		"post_count": gorm.Expr("post_count + ?", delta),
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		if isCheckConstraintError(res.Error) {
			return ErrCounterUnderflow
		}
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return models.NewAccountNotFoundError(id)
	}
	if delta < 0 {
		return ErrCounterUnderflow
	}
	return models.NewInternalError(errors.New("post_count update matched no rows"))
}

// RecountPosts rewrites post_count from the posts table and returns the new value.
func (r *accountRepository) RecountPosts(ctx context.Context, id uint) (count int64, err error) {
	ctx, span := observability.StartStoreSpan(ctx, "accounts", "RecountPosts")
	defer func() { observability.EndSpan(span, err) }()

	res := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"post_count": gorm.Expr("(SELECT COUNT(*) FROM posts WHERE posts.account_id = ?)", id),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, models.NewAccountNotFoundError(id)
	}

	if err := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).Pluck("post_count", &count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

const reconcileAllSQL = `UPDATE accounts
SET post_count = (SELECT COUNT(*) FROM posts WHERE posts.account_id = accounts.id),
    updated_at = ?
WHERE post_count <> (SELECT COUNT(*) FROM posts WHERE posts.account_id = accounts.id)`

// ReconcileAll repairs every account whose post_count has drifted and returns
// the number of accounts rewritten.
func (r *accountRepository) ReconcileAll(ctx context.Context) (repaired int64, err error) {
	ctx, span := observability.StartStoreSpan(ctx, "accounts", "ReconcileAll")
	defer func() { observability.EndSpan(span, err) }()

	res := r.db.WithContext(ctx).Exec(reconcileAllSQL, time.Now())
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *accountRepository) exists(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}
