package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"postbook/internal/middleware"
	"postbook/internal/models"
	"postbook/internal/service"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	defaultConcurrency = 4
	maxContactAttempts = 5
)

// Result summarizes a seeding run. Accounts are as created, before any posts.
type Result struct {
	Accounts []models.Account
	Posts    int64
}

// Seeder writes fake accounts and posts through the coordinator.
type Seeder struct {
	db          *gorm.DB
	coordinator *service.Coordinator
}

// NewSeeder creates a Seeder. db is only used by ClearAll.
func NewSeeder(db *gorm.DB, coordinator *service.Coordinator) *Seeder {
	return &Seeder{db: db, coordinator: coordinator}
}

// ClearAll removes every post and account. Posts go first so the foreign key
// never blocks the account delete.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Post{}).Error; err != nil {
			return fmt.Errorf("clear posts: %w", err)
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Account{}).Error; err != nil {
			return fmt.Errorf("clear accounts: %w", err)
		}
		return nil
	})
}

// ApplyPreset runs the named bundled preset.
func (s *Seeder) ApplyPreset(ctx context.Context, name string) (*Result, error) {
	opts, ok := DefaultPresets()[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %v)", name, PresetNames())
	}
	return s.Run(ctx, opts)
}

// Run creates opts.Accounts accounts and then opts.PostsPerAccount posts for
// each of them, at most opts.Concurrency at a time. The first failure cancels
// the remaining work.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Clean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	factory := NewFactory(opts.Seed, opts.MaxImages)

	middleware.Logger.InfoContext(ctx, "seeding started",
		slog.Int("accounts", opts.Accounts),
		slog.Int("posts_per_account", opts.PostsPerAccount),
		slog.Int("concurrency", concurrency),
	)

	accounts := make([]models.Account, 0, opts.Accounts)
	for i := 0; i < opts.Accounts; i++ {
		account, err := s.createAccount(ctx, factory)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i+1, err)
		}
		accounts = append(accounts, *account)
	}

	// Inputs are built up front so the concurrent phase only talks to the store.
	inputs := make([]service.CreatePostInput, 0, len(accounts)*opts.PostsPerAccount)
	for _, account := range accounts {
		for j := 0; j < opts.PostsPerAccount; j++ {
			inputs = append(inputs, factory.BuildPost(account.ID))
		}
	}

	var created atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, in := range inputs {
		g.Go(func() error {
			if _, err := s.coordinator.CreatePost(gctx, in); err != nil {
				return fmt.Errorf("post for account %d: %w", in.AccountID, err)
			}
			created.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &Result{Accounts: accounts, Posts: created.Load()}, err
	}

	middleware.Logger.InfoContext(ctx, "seeding finished",
		slog.Int("accounts", len(accounts)),
		slog.Int64("posts", created.Load()),
	)
	return &Result{Accounts: accounts, Posts: created.Load()}, nil
}

// createAccount retries with a new contact number when the generated one is
// already taken.
func (s *Seeder) createAccount(ctx context.Context, factory *Factory) (*models.Account, error) {
	in := factory.BuildAccount()
	var err error
	for attempt := 0; attempt < maxContactAttempts; attempt++ {
		var account *models.Account
		account, err = s.coordinator.CreateAccount(ctx, in)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, models.ErrDuplicateContact) {
			return nil, err
		}
		in.ContactNumber = factory.ContactNumber()
	}
	return nil, err
}
