package domain

import "time"

// Contact unifies the provider-native addresses believed to belong to one
// real-world person, scoped to a single user.
type Contact struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	UserID      string    `json:"user_id" gorm:"index;not null"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ContactAddress links one provider-native address to a contact. The unique
// index makes the invariant structural: within a user, an address belongs to
// at most one contact. Address sets only ever grow; merging is append-only.
type ContactAddress struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	ContactID string    `json:"contact_id" gorm:"index;not null"`
	UserID    string    `json:"user_id" gorm:"uniqueIndex:idx_user_provider_address;not null"`
	Provider  string    `json:"provider" gorm:"uniqueIndex:idx_user_provider_address;not null"`
	Address   string    `json:"address" gorm:"uniqueIndex:idx_user_provider_address;not null"`
	CreatedAt time.Time `json:"created_at"`
}
