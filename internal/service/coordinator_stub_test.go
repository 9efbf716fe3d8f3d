package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"postbook/internal/middleware"
	"postbook/internal/models"
	"postbook/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// accountRepoStub is a stub for repository.AccountRepository.
type accountRepoStub struct {
	createFn             func(context.Context, *models.Account) error
	getByIDFn            func(context.Context, uint) (*models.Account, error)
	getByContactNumberFn func(context.Context, string) (*models.Account, error)
	listFn               func(context.Context) ([]models.Account, error)
	incrementFn          func(context.Context, uint, int64) error
	recountFn            func(context.Context, uint) (int64, error)
	reconcileFn          func(context.Context) (int64, error)
}

func (s *accountRepoStub) Create(ctx context.Context, a *models.Account) error {
	return s.createFn(ctx, a)
}
func (s *accountRepoStub) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	return s.getByIDFn(ctx, id)
}
func (s *accountRepoStub) GetByContactNumber(ctx context.Context, contact string) (*models.Account, error) {
	return s.getByContactNumberFn(ctx, contact)
}
func (s *accountRepoStub) List(ctx context.Context) ([]models.Account, error) {
	return s.listFn(ctx)
}
func (s *accountRepoStub) IncrementPostCount(ctx context.Context, id uint, delta int64) error {
	return s.incrementFn(ctx, id, delta)
}
func (s *accountRepoStub) RecountPosts(ctx context.Context, id uint) (int64, error) {
	return s.recountFn(ctx, id)
}
func (s *accountRepoStub) ReconcileAll(ctx context.Context) (int64, error) {
	return s.reconcileFn(ctx)
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn         func(context.Context, *models.Post) error
	getByIDFn        func(context.Context, uint) (*models.Post, error)
	listFn           func(context.Context) ([]models.Post, error)
	listByAccountFn  func(context.Context, uint) ([]models.Post, error)
	findOneFn        func(context.Context, uint, uint) (*models.Post, error)
	updateFn         func(context.Context, uint, uint, models.PostUpdate) (*models.Post, error)
	deleteFn         func(context.Context, uint) error
	countByAccountFn func(context.Context, uint) (int64, error)
}

func (s *postRepoStub) Create(ctx context.Context, p *models.Post) error {
	return s.createFn(ctx, p)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context) ([]models.Post, error) {
	return s.listFn(ctx)
}
func (s *postRepoStub) ListByAccount(ctx context.Context, accountID uint) ([]models.Post, error) {
	return s.listByAccountFn(ctx, accountID)
}
func (s *postRepoStub) FindOne(ctx context.Context, id, accountID uint) (*models.Post, error) {
	return s.findOneFn(ctx, id, accountID)
}
func (s *postRepoStub) Update(ctx context.Context, id, accountID uint, u models.PostUpdate) (*models.Post, error) {
	return s.updateFn(ctx, id, accountID, u)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) CountByAccount(ctx context.Context, accountID uint) (int64, error) {
	return s.countByAccountFn(ctx, accountID)
}

func noopAccountRepo() *accountRepoStub {
	return &accountRepoStub{
		createFn:             func(_ context.Context, a *models.Account) error { a.ID = 1; return nil },
		getByIDFn:            func(_ context.Context, id uint) (*models.Account, error) { return &models.Account{ID: id}, nil },
		getByContactNumberFn: func(_ context.Context, _ string) (*models.Account, error) { return nil, nil },
		listFn:               func(_ context.Context) ([]models.Account, error) { return []models.Account{}, nil },
		incrementFn:          func(_ context.Context, _ uint, _ int64) error { return nil },
		recountFn:            func(_ context.Context, _ uint) (int64, error) { return 0, nil },
		reconcileFn:          func(_ context.Context) (int64, error) { return 0, nil },
	}
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:        func(_ context.Context, p *models.Post) error { p.ID = 1; return nil },
		getByIDFn:       func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		listFn:          func(_ context.Context) ([]models.Post, error) { return []models.Post{}, nil },
		listByAccountFn: func(_ context.Context, _ uint) ([]models.Post, error) { return []models.Post{}, nil },
		findOneFn: func(_ context.Context, id, accountID uint) (*models.Post, error) {
			return &models.Post{ID: id, AccountID: accountID}, nil
		},
		updateFn: func(_ context.Context, id, accountID uint, _ models.PostUpdate) (*models.Post, error) {
			return &models.Post{ID: id, AccountID: accountID}, nil
		},
		deleteFn:         func(_ context.Context, _ uint) error { return nil },
		countByAccountFn: func(_ context.Context, _ uint) (int64, error) { return 0, nil },
	}
}

// storeStub runs transactions inline; it has no rollback semantics.
type storeStub struct {
	accounts *accountRepoStub
	posts    *postRepoStub
	txCalls  int
}

func (s *storeStub) Accounts() repository.AccountRepository { return s.accounts }
func (s *storeStub) Posts() repository.PostRepository       { return s.posts }
func (s *storeStub) Transaction(_ context.Context, fn func(tx repository.Store) error) error {
	s.txCalls++
	return fn(s)
}

func newStubStore() *storeStub {
	return &storeStub{accounts: noopAccountRepo(), posts: noopPostRepo()}
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCreateAccount_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   CreateAccountInput
	}{
		{"missing name", CreateAccountInput{ContactNumber: "0700", Location: "Leeds"}},
		{"blank name", CreateAccountInput{Name: "   ", ContactNumber: "0700", Location: "Leeds"}},
		{"missing contact", CreateAccountInput{Name: "Ada", Location: "Leeds"}},
		{"contact with space", CreateAccountInput{Name: "Ada", ContactNumber: "07 00", Location: "Leeds"}},
		{"missing location", CreateAccountInput{Name: "Ada", ContactNumber: "0700"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStubStore()
			store.accounts.createFn = func(context.Context, *models.Account) error {
				t.Fatal("create must not be called for invalid input")
				return nil
			}
			_, err := NewCoordinator(store).CreateAccount(context.Background(), tt.in)
			assertValidationError(t, err)
		})
	}
}

func TestCreateAccount_TrimsAndPreChecksContact(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	var checked string
	store.accounts.getByContactNumberFn = func(_ context.Context, contact string) (*models.Account, error) {
		checked = contact
		return &models.Account{ID: 9, ContactNumber: contact}, nil
	}

	_, err := NewCoordinator(store).CreateAccount(context.Background(), CreateAccountInput{
		Name: " Ada ", ContactNumber: " 0700 ", Location: " Leeds ",
	})
	assert.ErrorIs(t, err, models.ErrDuplicateContact)
	assert.Equal(t, "0700", checked)
}

func TestCreateAccount_ConstraintIsAuthoritative(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.accounts.createFn = func(_ context.Context, a *models.Account) error {
		return models.NewDuplicateContactError(a.ContactNumber)
	}

	_, err := NewCoordinator(store).CreateAccount(context.Background(), CreateAccountInput{
		Name: "Ada", ContactNumber: "0700", Location: "Leeds",
	})
	assert.ErrorIs(t, err, models.ErrDuplicateContact)
}

func TestCreatePost_IncrementFailureSurfacesAsStoreFailure(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.accounts.incrementFn = func(context.Context, uint, int64) error {
		return errors.New("deadlock detected")
	}

	post, err := NewCoordinator(store).CreatePost(context.Background(), CreatePostInput{
		AccountID: 3, Title: "t", Description: "d",
	})
	assert.Nil(t, post)
	assert.ErrorIs(t, err, models.ErrStoreFailure)
	assert.Equal(t, 1, store.txCalls)
}

func TestCreatePost_UnknownAccount(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.accounts.getByIDFn = func(_ context.Context, id uint) (*models.Account, error) {
		return nil, models.NewAccountNotFoundError(id)
	}
	store.posts.createFn = func(context.Context, *models.Post) error {
		t.Fatal("post must not be inserted for a missing account")
		return nil
	}

	_, err := NewCoordinator(store).CreatePost(context.Background(), CreatePostInput{
		AccountID: 404, Title: "t", Description: "d",
	})
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestCreatePost_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   CreatePostInput
	}{
		{"missing title", CreatePostInput{AccountID: 1, Description: "d"}},
		{"missing description", CreatePostInput{AccountID: 1, Title: "t"}},
		{"blank image", CreatePostInput{AccountID: 1, Title: "t", Description: "d", Images: []string{""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStubStore()
			_, err := NewCoordinator(store).CreatePost(context.Background(), tt.in)
			assertValidationError(t, err)
			assert.Zero(t, store.txCalls)
		})
	}
}

func TestCreatePost_DefaultsImages(t *testing.T) {
	t.Parallel()

	post, err := NewCoordinator(newStubStore()).CreatePost(context.Background(), CreatePostInput{
		AccountID: 1, Title: "t", Description: "d",
	})
	require.NoError(t, err)
	assert.NotNil(t, post.Images)
	assert.Empty(t, post.Images)
}

func TestUpdatePost_RejectsEmptyProvidedFields(t *testing.T) {
	t.Parallel()

	empty := "  "
	store := newStubStore()
	store.posts.updateFn = func(context.Context, uint, uint, models.PostUpdate) (*models.Post, error) {
		t.Fatal("update must not run")
		return nil, nil
	}

	_, err := NewCoordinator(store).UpdatePost(context.Background(), UpdatePostInput{
		AccountID: 1, PostID: 2, Title: &empty,
	})
	assertValidationError(t, err)
}

func TestUpdatePost_ForwardsOnlyProvidedFields(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	var got models.PostUpdate
	store.posts.updateFn = func(_ context.Context, id, accountID uint, u models.PostUpdate) (*models.Post, error) {
		got = u
		return &models.Post{ID: id, AccountID: accountID}, nil
	}

	description := " new body "
	_, err := NewCoordinator(store).UpdatePost(context.Background(), UpdatePostInput{
		AccountID: 1, PostID: 2, Description: &description,
	})
	require.NoError(t, err)
	assert.Nil(t, got.Title)
	assert.Nil(t, got.Images)
	require.NotNil(t, got.Description)
	assert.Equal(t, "new body", *got.Description)
}

func TestDeletePost_UnderflowIsRepairedByRecount(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.accounts.incrementFn = func(_ context.Context, _ uint, delta int64) error {
		require.Equal(t, int64(-1), delta)
		return repository.ErrCounterUnderflow
	}
	recounted := false
	store.accounts.recountFn = func(_ context.Context, id uint) (int64, error) {
		recounted = true
		assert.Equal(t, uint(1), id)
		return 0, nil
	}

	err := NewCoordinator(store).DeletePost(context.Background(), DeletePostInput{AccountID: 1, PostID: 2})
	require.NoError(t, err)
	assert.True(t, recounted)
}

func TestDeletePost_OtherCounterErrorsFail(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.accounts.incrementFn = func(context.Context, uint, int64) error {
		return models.NewInternalError(errors.New("connection lost"))
	}

	err := NewCoordinator(store).DeletePost(context.Background(), DeletePostInput{AccountID: 1, PostID: 2})
	assert.ErrorIs(t, err, models.ErrStoreFailure)
}

func TestDeletePost_ScopedLookup(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.posts.findOneFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
		return nil, models.NewPostNotFoundError(id)
	}
	store.posts.deleteFn = func(context.Context, uint) error {
		t.Fatal("delete must not run when the post is not owned by the account")
		return nil
	}

	err := NewCoordinator(store).DeletePost(context.Background(), DeletePostInput{AccountID: 1, PostID: 2})
	assert.ErrorIs(t, err, models.ErrPostNotFound)
}

func TestAsAppError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, asAppError(nil))
	assert.ErrorIs(t, asAppError(errors.New("commit failed")), models.ErrStoreFailure)
	assert.ErrorIs(t, asAppError(models.NewPostNotFoundError(1)), models.ErrPostNotFound)
}

func TestCreateAccount_PreCheckAndInsertShareTransaction(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	var steps []string
	store.accounts.getByContactNumberFn = func(context.Context, string) (*models.Account, error) {
		steps = append(steps, fmt.Sprintf("check tx=%d", store.txCalls))
		return nil, nil
	}
	store.accounts.createFn = func(_ context.Context, a *models.Account) error {
		steps = append(steps, fmt.Sprintf("insert tx=%d", store.txCalls))
		a.ID = 4
		return nil
	}

	account, err := NewCoordinator(store).CreateAccount(context.Background(), CreateAccountInput{
		Name: "Ada", ContactNumber: "0700", Location: "Leeds",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(4), account.ID)
	assert.Equal(t, []string{"check tx=1", "insert tx=1"}, steps)
}

func TestRecountAccount_NoDriftSkipsRewrite(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.accounts.getByIDFn = func(_ context.Context, id uint) (*models.Account, error) {
		return &models.Account{ID: id, PostCount: 3}, nil
	}
	store.posts.countByAccountFn = func(context.Context, uint) (int64, error) { return 3, nil }
	store.accounts.recountFn = func(context.Context, uint) (int64, error) {
		t.Fatal("recount must not run when the counter matches")
		return 0, nil
	}

	account, err := NewCoordinator(store).RecountAccount(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), account.PostCount)
}

func TestRecountAccount_DriftIsRewritten(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	stored := int64(9)
	store.accounts.getByIDFn = func(_ context.Context, id uint) (*models.Account, error) {
		return &models.Account{ID: id, PostCount: stored}, nil
	}
	store.posts.countByAccountFn = func(context.Context, uint) (int64, error) { return 2, nil }
	store.accounts.recountFn = func(context.Context, uint) (int64, error) {
		stored = 2
		return 2, nil
	}

	account, err := NewCoordinator(store).RecountAccount(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), account.PostCount)
}

func TestReconcileCounters_ListFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := middleware.Logger
	middleware.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	t.Cleanup(func() { middleware.Logger = prev })

	store := newStubStore()
	store.accounts.reconcileFn = func(context.Context) (int64, error) { return 2, nil }
	store.accounts.listFn = func(context.Context) ([]models.Account, error) {
		return nil, models.NewInternalError(errors.New("connection lost"))
	}

	repaired, err := NewCoordinator(store).ReconcileCounters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), repaired)
	assert.Contains(t, buf.String(), "cache invalidation after reconcile skipped")
	assert.Contains(t, buf.String(), "connection lost")
}
