package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	accountdomain "unibox-backend/internal/account/domain"
	accountrepo "unibox-backend/internal/account/repository"
	billingusecase "unibox-backend/internal/billing/usecase"
	"unibox-backend/internal/message/domain"
	"unibox-backend/internal/message/repository"
	"unibox-backend/pkg/provider"
)

type messageUsecase struct {
	messageRepo      repository.MessageRepository
	contactRepo      repository.ContactRepository
	conversationRepo repository.ConversationRepository
	accountRepo      accountrepo.AccountRepository
	quota            billingusecase.QuotaGate
	registry         *provider.Registry
	eventService     EventService
}

func NewMessageUsecase(
	messageRepo repository.MessageRepository,
	contactRepo repository.ContactRepository,
	conversationRepo repository.ConversationRepository,
	accountRepo accountrepo.AccountRepository,
	quota billingusecase.QuotaGate,
	registry *provider.Registry,
) MessageUsecase {
	return &messageUsecase{
		messageRepo:      messageRepo,
		contactRepo:      contactRepo,
		conversationRepo: conversationRepo,
		accountRepo:      accountRepo,
		quota:            quota,
		registry:         registry,
	}
}

func (u *messageUsecase) SetEventService(svc EventService) {
	u.eventService = svc
}

func (u *messageUsecase) SendMessage(ctx context.Context, userID, accountID, to, body string, media []string) (*domain.Message, error) {
	account, err := u.accountRepo.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if account == nil || account.UserID != userID {
		return nil, errors.New("account not found")
	}
	if account.Status == accountdomain.StatusDisconnected {
		return nil, errors.New("account is disconnected")
	}

	active, err := u.quota.CheckActive(account.OrgID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, billingusecase.ErrQuotaExceeded
	}

	adapter, err := u.registry.Get(account.Provider)
	if err != nil {
		return nil, err
	}

	ref, err := adapter.SendMessage(ctx, account, to, body, media)
	if err != nil {
		var authErr *provider.AuthError
		if errors.As(err, &authErr) {
			if uerr := u.accountRepo.UpdateStatus(account.ID, accountdomain.StatusError); uerr != nil {
				log.Printf("[MessageUsecase] Failed to mark account %s as errored: %v", account.ID, uerr)
			}
		}
		return nil, err
	}

	msg := &domain.Message{
		ID:                uuid.New().String(),
		AccountID:         account.ID,
		UserID:            account.UserID,
		Provider:          account.Provider,
		ProviderMessageID: ref.ProviderMessageID,
		Direction:         domain.DirectionOutbound,
		FromAddress:       account.ExternalID,
		ToAddress:         to,
		Body:              body,
		MediaURLs:         media,
		SentAt:            time.Now(),
		Status:            domain.StatusSending,
	}
	if ref.Status != "" {
		msg.Status = ref.Status
	}

	stored, _, err := u.upsertOne(account, msg)
	if err != nil {
		return nil, fmt.Errorf("message sent but not recorded: %w", err)
	}
	if stored.SizeBytes > 0 {
		if err := u.quota.RecordStorageDelta(account.OrgID, stored.SizeBytes); err != nil {
			log.Printf("[Message] Failed to record storage delta for org %s: %v", account.OrgID, err)
		}
	}
	return stored, nil
}

func (u *messageUsecase) GetConversations(userID string, limit, offset int) ([]*domain.Conversation, int64, error) {
	return u.conversationRepo.FindByUser(userID, limit, offset)
}

func (u *messageUsecase) GetConversationMessages(userID, conversationID string, limit, offset int) ([]*domain.Message, int64, error) {
	conv, err := u.conversationRepo.FindByID(conversationID)
	if err != nil {
		return nil, 0, err
	}
	if conv == nil || conv.UserID != userID {
		return nil, 0, errors.New("conversation not found")
	}
	return u.messageRepo.FindByConversation(conversationID, limit, offset)
}

// DeleteMessage removes one message. A conversation never outlives its last
// message, so deleting the final one removes the conversation too.
func (u *messageUsecase) DeleteMessage(userID, messageID string) error {
	msg, err := u.messageRepo.FindByID(messageID)
	if err != nil {
		return err
	}
	if msg == nil || msg.UserID != userID {
		return errors.New("message not found")
	}

	size := msg.SizeBytes
	if err := u.messageRepo.Delete(messageID); err != nil {
		return err
	}

	remaining, err := u.messageRepo.CountByConversation(msg.ConversationID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		if err := u.conversationRepo.Delete(msg.ConversationID); err != nil {
			return err
		}
	}

	account, err := u.accountRepo.FindByID(msg.AccountID)
	if err == nil && account != nil {
		if qerr := u.quota.RecordStorageDelta(account.OrgID, -size); qerr != nil {
			log.Printf("[Message] Failed to release storage for org %s: %v", account.OrgID, qerr)
		}
	}
	return nil
}
