package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Post is a content item owned by exactly one Account.
type Post struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	Title       string                      `gorm:"type:text;not null" json:"title"`
	Description string                      `gorm:"type:text;not null" json:"description"`
	Images      datatypes.JSONSlice[string] `gorm:"not null" json:"images"`
	AccountID   uint                        `gorm:"not null;index" json:"account_id"`
	Account     *Account                    `gorm:"foreignKey:AccountID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// BeforeSave stores a missing image list as an empty JSON array rather than null.
func (p *Post) BeforeSave(*gorm.DB) error {
	if p.Images == nil {
		p.Images = datatypes.JSONSlice[string]{}
	}
	return nil
}

// PostUpdate lists the mutable fields of a post. Nil fields are left untouched.
type PostUpdate struct {
	Title       *string
	Description *string
	Images      *[]string
}

// Empty reports whether the update carries no fields.
func (u PostUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Images == nil
}
