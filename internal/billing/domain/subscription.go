package domain

import "time"

// SubscriptionStatus mirrors the states reported by the external billing
// system. Only active and trialing grant access to sync.
type SubscriptionStatus string

const (
	StatusActive     SubscriptionStatus = "active"
	StatusTrialing   SubscriptionStatus = "trialing"
	StatusPastDue    SubscriptionStatus = "past_due"
	StatusIncomplete SubscriptionStatus = "incomplete"
	StatusCanceled   SubscriptionStatus = "canceled"
)

// AccessGranting reports whether this status allows sync and send to proceed
func (s SubscriptionStatus) AccessGranting() bool {
	return s == StatusActive || s == StatusTrialing
}

type Organization struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Subscription holds the usage limits purchased by an organization. Price
// computation and payment processing live in the external billing system;
// the core only reads limits and status.
type Subscription struct {
	ID                string             `json:"id" gorm:"primaryKey"`
	OrgID             string             `json:"org_id" gorm:"uniqueIndex;not null"`
	Status            SubscriptionStatus `json:"status" gorm:"not null;default:'trialing'"`
	MaxConnections    int                `json:"max_connections" gorm:"not null;default:3"`
	StorageLimitBytes int64              `json:"storage_limit_bytes" gorm:"not null;default:1073741824"`
	AICreditLimit     int64              `json:"ai_credit_limit" gorm:"not null;default:0"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Usage is the metered consumption counter for an organization. StorageBytes
// is cumulative and clamped at zero on large deletions.
type Usage struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	OrgID         string    `json:"org_id" gorm:"uniqueIndex;not null"`
	StorageBytes  int64     `json:"storage_bytes" gorm:"not null;default:0"`
	AICreditsUsed int64     `json:"ai_credits_used" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
