package provider

import (
	"context"
	"encoding/json"
	"time"

	accountdomain "unibox-backend/internal/account/domain"
	messagedomain "unibox-backend/internal/message/domain"
)

// FetchRequest describes one page of a catch-up fetch. Since and Cursor are
// the two checkpoint representations; each adapter consumes whichever its
// provider paginates by and ignores the other. Calls must be idempotent:
// repeating the same request returns the same window.
type FetchRequest struct {
	Since    *time.Time
	Cursor   string
	PageSize int
}

// FetchResult carries one page of canonical messages plus pagination and
// rate-limit metadata. RateLimited with a populated RetryAfterSeconds means
// the provider cut the fetch short; messages already in the page are still
// valid and must be ingested.
type FetchResult struct {
	Messages          []*messagedomain.Message
	NextCursor        string
	RateLimited       bool
	RetryAfterSeconds int
}

// MessageRef identifies a message just accepted by a provider for sending
type MessageRef struct {
	ProviderMessageID string
	Status            messagedomain.DeliveryStatus
}

// Adapter is the contract every platform integration implements. Adapters
// talk to the provider network API and convert raw payloads to the canonical
// model; they never touch storage — persistence is the ingestion pipeline's
// single choke point.
type Adapter interface {
	// Provider returns the stable provider identifier (dedup key component)
	Provider() string

	// FetchMessages reads one page of messages at or after the checkpoint
	FetchMessages(ctx context.Context, account *accountdomain.Account, req FetchRequest) (*FetchResult, error)

	// SendMessage submits an outbound message to the provider
	SendMessage(ctx context.Context, account *accountdomain.Account, to, body string, media []string) (*MessageRef, error)

	// Normalize converts one raw provider payload to the canonical model.
	// Pure and deterministic: no I/O, no clock reads. The provider-native
	// message id is preserved exactly; direction comes from provider-native
	// fields, never inferred from account ownership alone.
	Normalize(raw json.RawMessage, account *accountdomain.Account) (*messagedomain.Message, error)

	// VerifyIdentifier probes the provider to confirm the account's claimed
	// external identifier actually exists (called at link time)
	VerifyIdentifier(ctx context.Context, account *accountdomain.Account) error

	// ListIdentifiers returns the identifiers available to this credential
	ListIdentifiers(ctx context.Context, account *accountdomain.Account) ([]string, error)
}
