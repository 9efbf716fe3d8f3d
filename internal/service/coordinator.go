// Package service contains the business logic that sits between the HTTP
// handlers and the repositories.
package service

import (
	"context"
	"errors"
	"log/slog"

	"postbook/internal/cache"
	"postbook/internal/middleware"
	"postbook/internal/models"
	"postbook/internal/observability"
	"postbook/internal/repository"
	"postbook/internal/validation"

	"gorm.io/datatypes"
)

// Coordinator is the only component that performs multi-step writes. Every
// operation that touches both accounts and posts runs in one store
// transaction so post_count always equals the number of posts referencing
// the account once the transaction commits.
type Coordinator struct {
	store repository.Store
}

type CreateAccountInput struct {
	Name          string
	ContactNumber string
	Location      string
}

type CreatePostInput struct {
	AccountID   uint
	Title       string
	Description string
	Images      []string
}

// UpdatePostInput carries the optional post fields. Nil means "leave as is".
type UpdatePostInput struct {
	AccountID   uint
	PostID      uint
	Title       *string
	Description *string
	Images      *[]string
}

type DeletePostInput struct {
	AccountID uint
	PostID    uint
}

func NewCoordinator(store repository.Store) *Coordinator {
	return &Coordinator{store: store}
}

func (c *Coordinator) begin(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := observability.StartCoordinatorSpan(ctx, op)
	return ctx, func(err error) {
		outcome := ""
		if err != nil {
			outcome = models.ErrorCode(err)
		}
		observability.RecordCoordinatorOperation(op, outcome)
		observability.EndSpan(span, err)
	}
}

// asAppError keeps typed errors and wraps anything else (driver, commit) as a store failure.
func asAppError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}

func (c *Coordinator) CreateAccount(ctx context.Context, in CreateAccountInput) (_ *models.Account, err error) {
	ctx, done := c.begin(ctx, "CreateAccount")
	defer func() { done(err) }()

	name := validation.Trim(in.Name)
	contact := validation.Trim(in.ContactNumber)
	location := validation.Trim(in.Location)

	if err := validation.ValidateName(name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateContactNumber(contact); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateLocation(location); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	account := &models.Account{
		Name:          name,
		ContactNumber: contact,
		Location:      location,
	}
	err = c.store.Transaction(ctx, func(tx repository.Store) error {
		// Fast path only; the unique index decides races.
		existing, err := tx.Accounts().GetByContactNumber(ctx, contact)
		if err != nil {
			return err
		}
		if existing != nil {
			return models.NewDuplicateContactError(contact)
		}
		return tx.Accounts().Create(ctx, account)
	})
	if err != nil {
		return nil, asAppError(err)
	}

	middleware.Logger.InfoContext(ctx, "account created", slog.Uint64("account_id", uint64(account.ID)))
	return account, nil
}

func (c *Coordinator) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	return c.store.Accounts().GetByID(ctx, id)
}

func (c *Coordinator) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return c.store.Accounts().List(ctx)
}

// CreatePost inserts the post and increments the owner's post_count in one
// transaction. If the increment fails the post is rolled back.
func (c *Coordinator) CreatePost(ctx context.Context, in CreatePostInput) (_ *models.Post, err error) {
	ctx, done := c.begin(ctx, "CreatePost")
	defer func() { done(err) }()

	title := validation.Trim(in.Title)
	description := validation.Trim(in.Description)
	if err := validation.ValidateTitle(title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateDescription(description); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateImages(in.Images); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	images := datatypes.JSONSlice[string]{}
	images = append(images, in.Images...)

	post := &models.Post{
		Title:       title,
		Description: description,
		Images:      images,
		AccountID:   in.AccountID,
	}

	err = c.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Accounts().GetByID(ctx, in.AccountID); err != nil {
			return err
		}
		if err := tx.Posts().Create(ctx, post); err != nil {
			return err
		}
		if err := tx.Accounts().IncrementPostCount(ctx, in.AccountID, 1); err != nil {
			observability.RecordInvariantViolation(observability.ViolationCounterIncrementFailed)
			middleware.Logger.ErrorContext(ctx, "post_count increment failed, rolling back post",
				slog.Uint64("account_id", uint64(in.AccountID)),
				slog.Uint64("post_id", uint64(post.ID)),
				slog.String("error", err.Error()),
			)
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, asAppError(err)
	}

	cache.InvalidateAccount(ctx, in.AccountID)
	middleware.Logger.InfoContext(ctx, "post created",
		slog.Uint64("account_id", uint64(in.AccountID)),
		slog.Uint64("post_id", uint64(post.ID)),
	)
	return post, nil
}

func (c *Coordinator) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return c.store.Posts().GetByID(ctx, id)
}

func (c *Coordinator) ListPosts(ctx context.Context) ([]models.Post, error) {
	return c.store.Posts().List(ctx)
}

// ListPostsForAccount distinguishes a missing account (AccountNotFound) from
// an account without posts (empty list).
func (c *Coordinator) ListPostsForAccount(ctx context.Context, accountID uint) ([]models.Post, error) {
	if _, err := c.store.Accounts().GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	return c.store.Posts().ListByAccount(ctx, accountID)
}

// UpdatePost changes title, description and images of a post owned by
// in.AccountID. The owner itself can never change.
func (c *Coordinator) UpdatePost(ctx context.Context, in UpdatePostInput) (_ *models.Post, err error) {
	ctx, done := c.begin(ctx, "UpdatePost")
	defer func() { done(err) }()

	var updated *models.Post
	err = c.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Posts().FindOne(ctx, in.PostID, in.AccountID); err != nil {
			return err
		}

		update, err := normalizeUpdate(in)
		if err != nil {
			return err
		}

		updated, err = tx.Posts().Update(ctx, in.PostID, in.AccountID, update)
		return err
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return updated, nil
}

func normalizeUpdate(in UpdatePostInput) (models.PostUpdate, error) {
	var update models.PostUpdate
	if in.Title != nil {
		title := validation.Trim(*in.Title)
		if err := validation.ValidateTitle(title); err != nil {
			return update, models.NewValidationError(err.Error())
		}
		update.Title = &title
	}
	if in.Description != nil {
		description := validation.Trim(*in.Description)
		if err := validation.ValidateDescription(description); err != nil {
			return update, models.NewValidationError(err.Error())
		}
		update.Description = &description
	}
	if in.Images != nil {
		if err := validation.ValidateImages(*in.Images); err != nil {
			return update, models.NewValidationError(err.Error())
		}
		images := append([]string{}, (*in.Images)...)
		update.Images = &images
	}
	return update, nil
}

// DeletePost removes a post owned by in.AccountID and decrements the owner's
// post_count in the same transaction. A decrement that would underflow means
// the counter had already drifted; it is logged, counted, and repaired by a
// recount before the transaction commits.
func (c *Coordinator) DeletePost(ctx context.Context, in DeletePostInput) (err error) {
	ctx, done := c.begin(ctx, "DeletePost")
	defer func() { done(err) }()

	err = c.store.Transaction(ctx, func(tx repository.Store) error {
		post, err := tx.Posts().FindOne(ctx, in.PostID, in.AccountID)
		if err != nil {
			return err
		}
		if err := tx.Posts().Delete(ctx, post.ID); err != nil {
			return err
		}

		err = tx.Transaction(ctx, func(inner repository.Store) error {
			return inner.Accounts().IncrementPostCount(ctx, in.AccountID, -1)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrCounterUnderflow) {
			return err
		}

		observability.RecordInvariantViolation(observability.ViolationCounterUnderflow)
		middleware.Logger.ErrorContext(ctx, "post_count underflow on delete, recounting",
			slog.Uint64("account_id", uint64(in.AccountID)),
			slog.Uint64("post_id", uint64(in.PostID)),
		)
		count, err := tx.Accounts().RecountPosts(ctx, in.AccountID)
		if err != nil {
			return err
		}
		observability.CountersRepaired.Inc()
		middleware.Logger.WarnContext(ctx, "post_count repaired",
			slog.Uint64("account_id", uint64(in.AccountID)),
			slog.Int64("post_count", count),
		)
		return nil
	})
	if err != nil {
		return asAppError(err)
	}

	cache.InvalidateAccount(ctx, in.AccountID)
	middleware.Logger.InfoContext(ctx, "post deleted",
		slog.Uint64("account_id", uint64(in.AccountID)),
		slog.Uint64("post_id", uint64(in.PostID)),
	)
	return nil
}

// RecountAccount rewrites one account's post_count from the posts table and
// returns the refreshed account.
func (c *Coordinator) RecountAccount(ctx context.Context, id uint) (_ *models.Account, err error) {
	ctx, done := c.begin(ctx, "RecountAccount")
	defer func() { done(err) }()

	var account *models.Account
	err = c.store.Transaction(ctx, func(tx repository.Store) error {
		before, err := tx.Accounts().GetByID(ctx, id)
		if err != nil {
			return err
		}
		actual, err := tx.Posts().CountByAccount(ctx, id)
		if err != nil {
			return err
		}
		if actual == before.PostCount {
			account = before
			return nil
		}

		observability.RecordInvariantViolation(observability.ViolationCounterDrift)
		count, err := tx.Accounts().RecountPosts(ctx, id)
		if err != nil {
			return err
		}
		observability.CountersRepaired.Inc()
		middleware.Logger.WarnContext(ctx, "post_count drift repaired",
			slog.Uint64("account_id", uint64(id)),
			slog.Int64("stored", before.PostCount),
			slog.Int64("actual", count),
		)
		account, err = tx.Accounts().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, asAppError(err)
	}

	cache.InvalidateAccount(ctx, id)
	return account, nil
}

// ReconcileCounters repairs every drifted post_count and returns how many
// accounts were rewritten.
func (c *Coordinator) ReconcileCounters(ctx context.Context) (_ int64, err error) {
	ctx, done := c.begin(ctx, "ReconcileCounters")
	defer func() { done(err) }()

	repaired, err := c.store.Accounts().ReconcileAll(ctx)
	if err != nil {
		return 0, err
	}
	if repaired == 0 {
		return 0, nil
	}

	observability.InvariantViolations.WithLabelValues(observability.ViolationCounterDrift).Add(float64(repaired))
	observability.CountersRepaired.Add(float64(repaired))
	middleware.Logger.WarnContext(ctx, "post_count drift reconciled", slog.Int64("accounts", repaired))

	accounts, err := c.store.Accounts().List(ctx)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation after reconcile skipped",
			slog.Int64("accounts", repaired),
			slog.String("error", err.Error()),
		)
		return repaired, nil
	}
	for _, a := range accounts {
		cache.InvalidateAccount(ctx, a.ID)
	}
	return repaired, nil
}
