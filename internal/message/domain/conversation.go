package domain

import "time"

// Conversation groups all messages exchanged with one contact, across every
// address linked to that contact. A conversation exists only while it holds
// at least one message; deleting the last message deletes the conversation.
type Conversation struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	UserID        string    `json:"user_id" gorm:"index;not null"`
	ContactID     string    `json:"contact_id" gorm:"uniqueIndex;not null"`
	LastMessageAt time.Time `json:"last_message_at" gorm:"index"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
