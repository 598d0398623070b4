// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// DefaultProfileImage is the shared placeholder avatar assigned to new
// accounts. It is never deleted when a user uploads a replacement.
const DefaultProfileImage = "default.jpg"

// User represents a registered account.
//
// Rows are hard-deleted: account deletion must leave nothing behind, so
// there is no gorm.DeletedAt soft-delete column.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	Email        string    `gorm:"unique;not null" json:"email"`
	Password     string    `gorm:"not null" json:"-"`
	ProfileImage string    `gorm:"not null;default:default.jpg" json:"profile_image"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	ChatMessages []ChatMessage `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Journals     []Journal     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
