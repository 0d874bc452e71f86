package repository

import (
	"time"

	"unibox-backend/internal/message/domain"
)

// MessageRepository defines data access for canonical messages. The
// (provider, provider_message_id) pair is unique; FindByProviderID is the
// dedup lookup the ingestion pipeline keys on.
type MessageRepository interface {
	Create(message *domain.Message) error
	FindByID(id string) (*domain.Message, error)
	FindByProviderID(provider, providerMessageID string) (*domain.Message, error)
	FindByConversation(conversationID string, limit, offset int) ([]*domain.Message, int64, error)
	CountByConversation(conversationID string) (int64, error)
	ConversationIDsByAccount(accountID string) ([]string, error)
	SumSizeByAccount(accountID string) (int64, error)
	UpdateStatus(id string, status domain.DeliveryStatus) error
	Delete(id string) error
	DeleteByAccount(accountID string) error
}

// ContactRepository defines data access for contacts and their addresses
type ContactRepository interface {
	CreateContact(contact *domain.Contact) error
	FindContactByID(id string) (*domain.Contact, error)
	AddAddress(addr *domain.ContactAddress) error
	FindAddress(userID, provider, address string) (*domain.ContactAddress, error)
	AddressesByContact(contactID string) ([]*domain.ContactAddress, error)
}

// ConversationRepository defines data access for conversations
type ConversationRepository interface {
	Create(conversation *domain.Conversation) error
	FindByID(id string) (*domain.Conversation, error)
	FindByContact(contactID string) (*domain.Conversation, error)
	FindByUser(userID string, limit, offset int) ([]*domain.Conversation, int64, error)
	Touch(id string, lastMessageAt time.Time) error
	Delete(id string) error
}
