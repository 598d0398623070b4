package models

import "time"

// Chat message senders.
const (
	SenderUser      = "user"
	SenderCompanion = "companion"
)

// ChatMessage is a single line of a user's companion conversation.
// Every message belongs to exactly one user and is removed either by the
// explicit delete-conversation action or by the account-deletion cascade.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Sender    string    `gorm:"not null" json:"sender"`
	Text      string    `gorm:"not null" json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
