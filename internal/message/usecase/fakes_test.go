package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	accountdomain "unibox-backend/internal/account/domain"
	"unibox-backend/internal/message/domain"
	"unibox-backend/pkg/provider"
)

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*domain.Message // keyed by provider "|" providerMessageID
	byID     map[string]*domain.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		messages: make(map[string]*domain.Message),
		byID:     make(map[string]*domain.Message),
	}
}

func dedupKey(provider, providerMessageID string) string {
	return provider + "|" + providerMessageID
}

func (f *fakeMessageRepo) Create(message *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := dedupKey(message.Provider, message.ProviderMessageID)
	if _, exists := f.messages[key]; exists {
		return fmt.Errorf("duplicate key value violates unique constraint")
	}
	copied := *message
	f.messages[key] = &copied
	f.byID[message.ID] = &copied
	return nil
}

func (f *fakeMessageRepo) FindByID(id string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.byID[id]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeMessageRepo) FindByProviderID(provider, providerMessageID string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[dedupKey(provider, providerMessageID)]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeMessageRepo) FindByConversation(conversationID string, limit, offset int) ([]*domain.Message, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Message
	for _, m := range f.byID {
		if m.ConversationID == conversationID {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeMessageRepo) CountByConversation(conversationID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, m := range f.byID {
		if m.ConversationID == conversationID {
			count++
		}
	}
	return count, nil
}

func (f *fakeMessageRepo) ConversationIDsByAccount(accountID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, m := range f.byID {
		if m.AccountID == accountID && !seen[m.ConversationID] {
			seen[m.ConversationID] = true
			out = append(out, m.ConversationID)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) SumSizeByAccount(accountID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int64
	for _, m := range f.byID {
		if m.AccountID == accountID {
			sum += m.SizeBytes
		}
	}
	return sum, nil
}

func (f *fakeMessageRepo) UpdateStatus(id string, status domain.DeliveryStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.byID[id]; ok {
		m.Status = status
	}
	return nil
}

func (f *fakeMessageRepo) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.byID[id]; ok {
		delete(f.messages, dedupKey(m.Provider, m.ProviderMessageID))
		delete(f.byID, id)
	}
	return nil
}

func (f *fakeMessageRepo) DeleteByAccount(accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, m := range f.byID {
		if m.AccountID == accountID {
			delete(f.messages, dedupKey(m.Provider, m.ProviderMessageID))
			delete(f.byID, id)
		}
	}
	return nil
}

type fakeContactRepo struct {
	mu        sync.Mutex
	contacts  map[string]*domain.Contact
	addresses []*domain.ContactAddress
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{contacts: make(map[string]*domain.Contact)}
}

func (f *fakeContactRepo) CreateContact(contact *domain.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *contact
	f.contacts[contact.ID] = &copied
	return nil
}

func (f *fakeContactRepo) FindContactByID(id string) (*domain.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.contacts[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeContactRepo) AddAddress(addr *domain.ContactAddress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *addr
	f.addresses = append(f.addresses, &copied)
	return nil
}

func (f *fakeContactRepo) FindAddress(userID, provider, address string) (*domain.ContactAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.addresses {
		if a.UserID == userID && a.Provider == provider && a.Address == address {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeContactRepo) AddressesByContact(contactID string) ([]*domain.ContactAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.ContactAddress
	for _, a := range f.addresses {
		if a.ContactID == contactID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[string]*domain.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[string]*domain.Conversation)}
}

func (f *fakeConversationRepo) Create(conversation *domain.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *conversation
	f.conversations[conversation.ID] = &copied
	return nil
}

func (f *fakeConversationRepo) FindByID(id string) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.conversations[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeConversationRepo) FindByContact(contactID string) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conversations {
		if c.ContactID == contactID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeConversationRepo) FindByUser(userID string, limit, offset int) ([]*domain.Conversation, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Conversation
	for _, c := range f.conversations {
		if c.UserID == userID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeConversationRepo) Touch(id string, lastMessageAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.conversations[id]; ok && lastMessageAt.After(c.LastMessageAt) {
		c.LastMessageAt = lastMessageAt
	}
	return nil
}

func (f *fakeConversationRepo) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conversations, id)
	return nil
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*accountdomain.Account
}

func newFakeAccountRepo(accounts ...*accountdomain.Account) *fakeAccountRepo {
	f := &fakeAccountRepo{accounts: make(map[string]*accountdomain.Account)}
	for _, a := range accounts {
		copied := *a
		f.accounts[a.ID] = &copied
	}
	return f
}

func (f *fakeAccountRepo) Create(account *accountdomain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *account
	f.accounts[account.ID] = &copied
	return nil
}

func (f *fakeAccountRepo) FindByID(id string) (*accountdomain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.accounts[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeAccountRepo) FindByUser(userID string) ([]*accountdomain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*accountdomain.Account
	for _, a := range f.accounts {
		if a.UserID == userID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) FindByProviderExternalID(provider, externalID string) (*accountdomain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Provider == provider && a.ExternalID == externalID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeAccountRepo) CountByOrg(orgID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, a := range f.accounts {
		if a.OrgID == orgID {
			count++
		}
	}
	return count, nil
}

func (f *fakeAccountRepo) ListUserIDs() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, a := range f.accounts {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			out = append(out, a.UserID)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) UpdateStatus(id string, status accountdomain.AccountStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.accounts[id]; ok {
		a.Status = status
	}
	return nil
}

func (f *fakeAccountRepo) UpdateCheckpoint(id string, lastSyncAt time.Time, cursor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.accounts[id]; ok {
		ts := lastSyncAt
		a.LastSyncAt = &ts
		a.SyncCursor = cursor
	}
	return nil
}

func (f *fakeAccountRepo) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, id)
	return nil
}

type fakeQuotaGate struct {
	mu       sync.Mutex
	deltas   []int64
	active   bool
	allowNew bool
}

func newFakeQuotaGate() *fakeQuotaGate {
	return &fakeQuotaGate{active: true, allowNew: true}
}

func (f *fakeQuotaGate) CheckConnectionLimit(orgID string) (bool, error) {
	return f.allowNew, nil
}

func (f *fakeQuotaGate) RecordStorageDelta(orgID string, bytesDelta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deltas = append(f.deltas, bytesDelta)
	return nil
}

func (f *fakeQuotaGate) CheckActive(orgID string) (bool, error) {
	return f.active, nil
}

func (f *fakeQuotaGate) ConsumeAICredits(orgID string, credits int64) error {
	return nil
}

func (f *fakeQuotaGate) totalDelta() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int64
	for _, d := range f.deltas {
		sum += d
	}
	return sum
}

// fakeAdapter is a minimal in-memory platform adapter. Normalize consumes
// the same shape the tests publish in webhook envelopes.
type fakeAdapter struct {
	name     string
	sendRefs []*provider.MessageRef
	sendErr  error
	sent     []string
}

func (f *fakeAdapter) Provider() string { return f.name }

func (f *fakeAdapter) FetchMessages(ctx context.Context, account *accountdomain.Account, req provider.FetchRequest) (*provider.FetchResult, error) {
	return &provider.FetchResult{}, nil
}

func (f *fakeAdapter) SendMessage(ctx context.Context, account *accountdomain.Account, to, body string, media []string) (*provider.MessageRef, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, to)
	if len(f.sendRefs) > 0 {
		ref := f.sendRefs[0]
		f.sendRefs = f.sendRefs[1:]
		return ref, nil
	}
	return &provider.MessageRef{ProviderMessageID: "sent-1", Status: domain.StatusSending}, nil
}

type fakeRawMessage struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
	Direction string    `json:"direction"`
	Status    string    `json:"status"`
}

func (f *fakeAdapter) Normalize(raw json.RawMessage, account *accountdomain.Account) (*domain.Message, error) {
	var rm fakeRawMessage
	if err := json.Unmarshal(raw, &rm); err != nil {
		return nil, err
	}
	if rm.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	direction := domain.DirectionInbound
	if rm.Direction == "outbound" {
		direction = domain.DirectionOutbound
	}
	status := domain.StatusDelivered
	if rm.Status != "" {
		status = domain.DeliveryStatus(rm.Status)
	}
	return &domain.Message{
		Provider:          f.name,
		ProviderMessageID: rm.ID,
		Direction:         direction,
		FromAddress:       rm.From,
		ToAddress:         rm.To,
		Body:              rm.Body,
		SentAt:            rm.SentAt,
		Status:            status,
	}, nil
}

func (f *fakeAdapter) VerifyIdentifier(ctx context.Context, account *accountdomain.Account) error {
	return nil
}

func (f *fakeAdapter) ListIdentifiers(ctx context.Context, account *accountdomain.Account) ([]string, error) {
	return []string{account.ExternalID}, nil
}

type capturedEvent struct {
	userID    string
	eventType string
	payload   interface{}
}

type fakeEventService struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (f *fakeEventService) SendToUser(userID string, eventType string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, capturedEvent{userID: userID, eventType: eventType, payload: payload})
}
