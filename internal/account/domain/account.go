package domain

import "time"

// AccountStatus reflects whether a linked account is usable for sync
type AccountStatus string

const (
	StatusConnected    AccountStatus = "connected"
	StatusError        AccountStatus = "error"
	StatusDisconnected AccountStatus = "disconnected"
)

// Account is a user's credentialed connection to one provider. The credential
// blob is opaque to the core: it is produced by the external credential store
// and only ever passed through to the matching platform adapter.
//
// LastSyncAt and SyncCursor together form the sync checkpoint. Adapters that
// paginate by time consume LastSyncAt; adapters with provider-native cursors
// consume SyncCursor. The orchestrator persists both and advances them only
// after a batch has been ingested successfully.
type Account struct {
	ID         string        `json:"id" gorm:"primaryKey"`
	UserID     string        `json:"user_id" gorm:"index;not null"`
	OrgID      string        `json:"org_id" gorm:"index;not null"`
	Provider   string        `json:"provider" gorm:"index;not null"`
	Credential []byte        `json:"-" gorm:"type:bytea"`
	ExternalID string        `json:"external_id" gorm:"not null"`
	LastSyncAt *time.Time    `json:"last_sync_at"`
	SyncCursor string        `json:"sync_cursor"`
	Status     AccountStatus `json:"status" gorm:"not null;default:'connected'"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
