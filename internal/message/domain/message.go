package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Direction classifies who originated a message, as reported by the provider
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// DeliveryStatus tracks a message through its provider-side lifecycle
type DeliveryStatus string

const (
	StatusSending   DeliveryStatus = "sending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
	StatusFailed    DeliveryStatus = "failed"
)

// StringArray is a custom type to handle JSON array in GORM
type StringArray []string

// Value implements driver.Valuer
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = []string{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	if len(bytes) == 0 {
		*a = []string{}
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// Message is the canonical, provider-agnostic message record. Its identity
// is the (provider, provider_message_id) pair: re-ingesting the same provider
// message must hit the unique index and update in place, never duplicate.
type Message struct {
	ID                string         `json:"id" gorm:"primaryKey"`
	Provider          string         `json:"provider" gorm:"uniqueIndex:idx_provider_message;not null"`
	ProviderMessageID string         `json:"provider_message_id" gorm:"uniqueIndex:idx_provider_message;not null"`
	AccountID         string         `json:"account_id" gorm:"index;not null"`
	UserID            string         `json:"user_id" gorm:"index;not null"`
	ConversationID    string         `json:"conversation_id" gorm:"index"`
	Direction         Direction      `json:"direction" gorm:"not null"`
	FromAddress       string         `json:"from_address" gorm:"not null"`
	ToAddress         string         `json:"to_address"`
	Body              string         `json:"body"`
	MediaURLs         StringArray    `json:"media_urls,omitempty" gorm:"type:text"`
	SentAt            time.Time      `json:"sent_at" gorm:"index"`
	Status            DeliveryStatus `json:"status" gorm:"not null;default:'sent'"`
	SizeBytes         int64          `json:"size_bytes"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// CounterpartAddress returns the address of the other party in the exchange:
// the sender for inbound messages, the recipient for outbound ones.
func (m *Message) CounterpartAddress() string {
	if m.Direction == DirectionOutbound {
		return m.ToAddress
	}
	return m.FromAddress
}

// Size reports the bytes this message accounts for against storage quota
func (m *Message) Size() int64 {
	size := int64(len(m.Body))
	for _, u := range m.MediaURLs {
		size += int64(len(u))
	}
	return size
}
