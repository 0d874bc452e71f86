package usecase

import (
	"context"

	accountdomain "unibox-backend/internal/account/domain"
	"unibox-backend/internal/message/domain"
)

// EventService defines interface for sending realtime notifications
type EventService interface {
	SendToUser(userID string, eventType string, payload interface{})
}

// BatchResult summarizes one ingestion batch. One malformed message never
// aborts its siblings; it is counted here instead.
type BatchResult struct {
	Processed  int   `json:"processed"`
	Skipped    int   `json:"skipped"`
	Failed     int   `json:"failed"`
	NewInbound int   `json:"new_inbound"`
	BytesAdded int64 `json:"bytes_added"`
}

// MessageUsecase is the deduplicating ingestion pipeline plus the message
// operations built on top of it. All writes of canonical messages funnel
// through IngestBatch/SendMessage so dedup has a single choke point.
type MessageUsecase interface {
	// IngestBatch upserts a batch of canonical messages for one account,
	// unifying contacts and conversations and metering storage
	IngestBatch(ctx context.Context, account *accountdomain.Account, messages []*domain.Message) *BatchResult

	// IngestWebhook feeds provider-pushed events into the same pipeline.
	// Safe to call with duplicate payloads; providers retry.
	IngestWebhook(ctx context.Context, providerName string, payload []byte) error

	// SendMessage submits an outbound message and stores it immediately
	// with status "sending"; poll or webhook confirmation updates it later
	SendMessage(ctx context.Context, userID, accountID, to, body string, media []string) (*domain.Message, error)

	GetConversations(userID string, limit, offset int) ([]*domain.Conversation, int64, error)
	GetConversationMessages(userID, conversationID string, limit, offset int) ([]*domain.Message, int64, error)
	DeleteMessage(userID, messageID string) error

	// SetEventService allows wiring the realtime notifier after creation
	SetEventService(svc EventService)
}
