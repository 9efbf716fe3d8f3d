package repository

import (
	"context"
	"errors"

	"postbook/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context) ([]models.Post, error)
	ListByAccount(ctx context.Context, accountID uint) ([]models.Post, error)
	FindOne(ctx context.Context, id, accountID uint) (*models.Post, error)
	Update(ctx context.Context, id, accountID uint, update models.PostUpdate) (*models.Post, error)
	Delete(ctx context.Context, id uint) error
	CountByAccount(ctx context.Context, accountID uint) (int64, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository returns a new PostRepository implementation.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts the post. The owning account is not checked here beyond the
// foreign key; a dangling account_id surfaces as AccountNotFound.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	post.ID = 0
	if err := r.db.WithContext(ctx).Omit("Account").Create(post).Error; err != nil {
		if isForeignKeyError(err) {
			return models.NewAccountNotFoundError(post.AccountID)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewPostNotFoundError(id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) ListByAccount(ctx context.Context, accountID uint) ([]models.Post, error) {
	posts := []models.Post{}
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("id ASC").Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// FindOne returns the post only if it belongs to accountID.
func (r *postRepository) FindOne(ctx context.Context, id, accountID uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", id, accountID).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewPostNotFoundError(id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

// Update applies the provided fields to the post scoped to accountID.
// account_id itself is never written.
func (r *postRepository) Update(ctx context.Context, id, accountID uint, update models.PostUpdate) (*models.Post, error) {
	if update.Empty() {
		return r.FindOne(ctx, id, accountID)
	}

	values := map[string]interface{}{}
	if update.Title != nil {
		values["title"] = *update.Title
	}
	if update.Description != nil {
		values["description"] = *update.Description
	}
	if update.Images != nil {
		images := datatypes.JSONSlice[string]{}
		images = append(images, (*update.Images)...)
		values["images"] = images
	}

	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND account_id = ?", id, accountID).
		Updates(values)
	if res.Error != nil {
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewPostNotFoundError(id)
	}

	return r.FindOne(ctx, id, accountID)
}

// Delete removes the post. Deleting a missing post is not an error.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) CountByAccount(ctx context.Context, accountID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("account_id = ?", accountID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
