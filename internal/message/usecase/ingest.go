package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	accountdomain "unibox-backend/internal/account/domain"
	"unibox-backend/internal/message/domain"
)

// webhookEnvelope is the push payload shape shared by all providers: the
// provider-native account identifier plus raw provider events
type webhookEnvelope struct {
	Account  string            `json:"account"`
	Messages []json.RawMessage `json:"messages"`
}

// IngestBatch runs every message through the dedup/unification pipeline.
// A malformed or failing message is counted and skipped; the rest of the
// batch proceeds. Storage is metered once for the whole batch.
func (u *messageUsecase) IngestBatch(ctx context.Context, account *accountdomain.Account, messages []*domain.Message) *BatchResult {
	result := &BatchResult{}

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			result.Failed += len(messages) - result.Processed - result.Skipped - result.Failed
			break
		}

		msg.AccountID = account.ID
		msg.UserID = account.UserID
		msg.Provider = account.Provider

		if msg.ProviderMessageID == "" || msg.SentAt.IsZero() {
			log.Printf("[Ingest] Dropping malformed message for account %s: missing provider id or timestamp", account.ID)
			result.Failed++
			continue
		}

		stored, created, err := u.upsertOne(account, msg)
		if err != nil {
			log.Printf("[Ingest] Failed to store message %s/%s: %v", msg.Provider, msg.ProviderMessageID, err)
			result.Failed++
			continue
		}
		if !created {
			result.Skipped++
			continue
		}

		result.Processed++
		result.BytesAdded += stored.SizeBytes
		if stored.Direction == domain.DirectionInbound {
			result.NewInbound++
		}
	}

	if result.BytesAdded > 0 {
		if err := u.quota.RecordStorageDelta(account.OrgID, result.BytesAdded); err != nil {
			log.Printf("[Ingest] Failed to record storage delta for org %s: %v", account.OrgID, err)
		}
	}

	if result.NewInbound > 0 && u.eventService != nil {
		u.eventService.SendToUser(account.UserID, "messages:new", map[string]interface{}{
			"account_id": account.ID,
			"provider":   account.Provider,
			"count":      result.NewInbound,
		})
	}

	return result
}

// IngestWebhook resolves the pushed payload to a linked account, normalizes
// each raw event through the provider adapter, and hands the batch to the
// same pipeline polling uses. Duplicate deliveries are absorbed by dedup.
func (u *messageUsecase) IngestWebhook(ctx context.Context, providerName string, payload []byte) error {
	adapter, err := u.registry.Get(providerName)
	if err != nil {
		return err
	}

	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("malformed webhook payload: %w", err)
	}
	if env.Account == "" {
		return errors.New("webhook payload missing account identifier")
	}

	account, err := u.accountRepo.FindByProviderExternalID(providerName, env.Account)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("no linked %s account for identifier %s", providerName, env.Account)
	}

	messages := make([]*domain.Message, 0, len(env.Messages))
	for _, raw := range env.Messages {
		msg, err := adapter.Normalize(raw, account)
		if err != nil {
			log.Printf("[Webhook] Skipping unparseable %s event for account %s: %v", providerName, account.ID, err)
			continue
		}
		messages = append(messages, msg)
	}

	result := u.IngestBatch(ctx, account, messages)
	log.Printf("[Webhook] %s account %s: processed=%d skipped=%d failed=%d",
		providerName, account.ID, result.Processed, result.Skipped, result.Failed)
	return nil
}

// upsertOne is the single write path for canonical messages. It returns the
// stored message and whether a new row was created; a dedup hit only updates
// delivery status, never identity or content.
func (u *messageUsecase) upsertOne(account *accountdomain.Account, msg *domain.Message) (*domain.Message, bool, error) {
	existing, err := u.messageRepo.FindByProviderID(msg.Provider, msg.ProviderMessageID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, u.applyStatus(existing, msg.Status)
	}

	conv, err := u.resolveConversation(account, msg)
	if err != nil {
		return nil, false, err
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.ConversationID = conv.ID
	msg.SizeBytes = msg.Size()

	if err := u.messageRepo.Create(msg); err != nil {
		// A concurrent webhook delivery may have won the unique-index race;
		// re-check before reporting failure
		existing, ferr := u.messageRepo.FindByProviderID(msg.Provider, msg.ProviderMessageID)
		if ferr == nil && existing != nil {
			return existing, false, u.applyStatus(existing, msg.Status)
		}
		return nil, false, err
	}

	if err := u.conversationRepo.Touch(conv.ID, msg.SentAt); err != nil {
		log.Printf("[Ingest] Failed to touch conversation %s: %v", conv.ID, err)
	}
	return msg, true, nil
}

func (u *messageUsecase) applyStatus(existing *domain.Message, status domain.DeliveryStatus) error {
	if status == "" || status == existing.Status {
		return nil
	}
	if err := u.messageRepo.UpdateStatus(existing.ID, status); err != nil {
		return err
	}
	existing.Status = status
	return nil
}

// resolveConversation finds or creates the contact and conversation for the
// message's counterpart address. Matching is exact on (provider, address);
// cross-provider identities stay separate until a user merges them.
func (u *messageUsecase) resolveConversation(account *accountdomain.Account, msg *domain.Message) (*domain.Conversation, error) {
	counterpart := msg.CounterpartAddress()
	if counterpart == "" {
		return nil, errors.New("message has no counterpart address")
	}

	addr, err := u.contactRepo.FindAddress(account.UserID, msg.Provider, counterpart)
	if err != nil {
		return nil, err
	}

	var contactID string
	if addr != nil {
		contactID = addr.ContactID
	} else {
		contact := &domain.Contact{
			ID:          uuid.New().String(),
			UserID:      account.UserID,
			DisplayName: counterpart,
		}
		if err := u.contactRepo.CreateContact(contact); err != nil {
			return nil, err
		}
		if err := u.contactRepo.AddAddress(&domain.ContactAddress{
			ID:        uuid.New().String(),
			ContactID: contact.ID,
			UserID:    account.UserID,
			Provider:  msg.Provider,
			Address:   counterpart,
		}); err != nil {
			return nil, err
		}
		contactID = contact.ID
	}

	conv, err := u.conversationRepo.FindByContact(contactID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		conv = &domain.Conversation{
			ID:            uuid.New().String(),
			UserID:        account.UserID,
			ContactID:     contactID,
			LastMessageAt: msg.SentAt,
		}
		if err := u.conversationRepo.Create(conv); err != nil {
			// Concurrent ingress may have created it first
			if existing, ferr := u.conversationRepo.FindByContact(contactID); ferr == nil && existing != nil {
				return existing, nil
			}
			return nil, err
		}
	}
	return conv, nil
}
