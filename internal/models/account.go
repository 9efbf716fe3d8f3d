// Package models contains data structures for the application's domain models.
package models

import "time"

// Account limits.
const (
	MaxNameLength          = 256
	MaxContactNumberLength = 255
)

// Account is a registered person. PostCount mirrors the number of posts
// referencing the account and is only written by the coordinator.
type Account struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:256;not null" json:"name"`
	ContactNumber string    `gorm:"size:255;not null;uniqueIndex" json:"contact_number"`
	Location      string    `gorm:"type:text;not null;default:''" json:"location"`
	PostCount     int64     `gorm:"not null;default:0;check:chk_accounts_post_count,post_count >= 0" json:"post_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
