package usecase

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"unibox-backend/internal/account/domain"
	accountrepo "unibox-backend/internal/account/repository"
	billingusecase "unibox-backend/internal/billing/usecase"
	messagerepo "unibox-backend/internal/message/repository"
	"unibox-backend/pkg/provider"
)

var ErrAccountNotFound = errors.New("account not found")

// AccountUsecase manages the lifecycle of linked provider accounts
type AccountUsecase interface {
	// LinkAccount verifies the claimed provider identifier against the
	// credential and stores the connection. Blocked when the organization
	// is at its connection limit; no row is written in that case.
	LinkAccount(ctx context.Context, userID, orgID, providerName string, credential []byte, externalID string) (*domain.Account, error)

	// UnlinkAccount removes the account, all its messages, any
	// conversations left empty by their removal, and the storage they
	// were metered for
	UnlinkAccount(userID, accountID string) error

	ListAccounts(userID string) ([]*domain.Account, error)
	GetAccount(userID, accountID string) (*domain.Account, error)
}

type accountUsecase struct {
	accountRepo accountrepo.AccountRepository
	messageRepo messagerepo.MessageRepository
	convRepo    messagerepo.ConversationRepository
	quota       billingusecase.QuotaGate
	registry    *provider.Registry
}

func NewAccountUsecase(
	accountRepo accountrepo.AccountRepository,
	messageRepo messagerepo.MessageRepository,
	convRepo messagerepo.ConversationRepository,
	quota billingusecase.QuotaGate,
	registry *provider.Registry,
) AccountUsecase {
	return &accountUsecase{
		accountRepo: accountRepo,
		messageRepo: messageRepo,
		convRepo:    convRepo,
		quota:       quota,
		registry:    registry,
	}
}

func (u *accountUsecase) LinkAccount(ctx context.Context, userID, orgID, providerName string, credential []byte, externalID string) (*domain.Account, error) {
	adapter, err := u.registry.Get(providerName)
	if err != nil {
		return nil, err
	}

	allowed, err := u.quota.CheckConnectionLimit(orgID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, billingusecase.ErrQuotaExceeded
	}

	account := &domain.Account{
		ID:         uuid.New().String(),
		UserID:     userID,
		OrgID:      orgID,
		Provider:   providerName,
		Credential: credential,
		ExternalID: externalID,
		Status:     domain.StatusConnected,
	}

	// Probe before persisting so a bad credential or an identifier the
	// credential cannot see never produces a stored account
	if err := adapter.VerifyIdentifier(ctx, account); err != nil {
		return nil, err
	}

	if err := u.accountRepo.Create(account); err != nil {
		return nil, err
	}
	log.Printf("[AccountUsecase] Linked %s account %s for user %s", providerName, account.ID, userID)
	return account, nil
}

func (u *accountUsecase) UnlinkAccount(userID, accountID string) error {
	account, err := u.accountRepo.FindByID(accountID)
	if err != nil {
		return err
	}
	if account == nil || account.UserID != userID {
		return ErrAccountNotFound
	}

	freedBytes, err := u.messageRepo.SumSizeByAccount(accountID)
	if err != nil {
		return err
	}
	convIDs, err := u.messageRepo.ConversationIDsByAccount(accountID)
	if err != nil {
		return err
	}

	if err := u.messageRepo.DeleteByAccount(accountID); err != nil {
		return err
	}

	// Conversations shared with messages from other accounts survive;
	// only ones left empty go
	for _, convID := range convIDs {
		remaining, err := u.messageRepo.CountByConversation(convID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if err := u.convRepo.Delete(convID); err != nil {
				return err
			}
		}
	}

	if err := u.accountRepo.Delete(accountID); err != nil {
		return err
	}

	if freedBytes > 0 {
		if err := u.quota.RecordStorageDelta(account.OrgID, -freedBytes); err != nil {
			log.Printf("[AccountUsecase] Failed to release %d bytes for org %s: %v", freedBytes, account.OrgID, err)
		}
	}
	log.Printf("[AccountUsecase] Unlinked %s account %s, freed %d bytes", account.Provider, accountID, freedBytes)
	return nil
}

func (u *accountUsecase) ListAccounts(userID string) ([]*domain.Account, error) {
	return u.accountRepo.FindByUser(userID)
}

func (u *accountUsecase) GetAccount(userID, accountID string) (*domain.Account, error) {
	account, err := u.accountRepo.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if account == nil || account.UserID != userID {
		return nil, ErrAccountNotFound
	}
	return account, nil
}
