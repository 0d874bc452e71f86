package repository

import (
	"time"

	"unibox-backend/internal/account/domain"
)

// AccountRepository defines data access for linked provider accounts
type AccountRepository interface {
	Create(account *domain.Account) error
	FindByID(id string) (*domain.Account, error)
	FindByUser(userID string) ([]*domain.Account, error)
	FindByProviderExternalID(provider, externalID string) (*domain.Account, error)
	CountByOrg(orgID string) (int64, error)
	ListUserIDs() ([]string, error)
	UpdateStatus(id string, status domain.AccountStatus) error
	UpdateCheckpoint(id string, lastSyncAt time.Time, cursor string) error
	Delete(id string) error
}
