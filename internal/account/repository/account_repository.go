package repository

import (
	"time"

	"unibox-backend/internal/account/domain"

	"gorm.io/gorm"
)

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new instance of accountRepository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(account *domain.Account) error {
	return r.db.Create(account).Error
}

func (r *accountRepository) FindByID(id string) (*domain.Account, error) {
	var account domain.Account
	err := r.db.Where("id = ?", id).First(&account).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByUser(userID string) ([]*domain.Account, error) {
	var accounts []*domain.Account
	err := r.db.Where("user_id = ?", userID).Order("created_at asc").Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) FindByProviderExternalID(provider, externalID string) (*domain.Account, error) {
	var account domain.Account
	err := r.db.Where("provider = ? AND external_id = ?", provider, externalID).First(&account).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) CountByOrg(orgID string) (int64, error) {
	var count int64
	err := r.db.Model(&domain.Account{}).Where("org_id = ?", orgID).Count(&count).Error
	return count, err
}

func (r *accountRepository) ListUserIDs() ([]string, error) {
	var userIDs []string
	err := r.db.Model(&domain.Account{}).Distinct("user_id").Pluck("user_id", &userIDs).Error
	return userIDs, err
}

func (r *accountRepository) UpdateStatus(id string, status domain.AccountStatus) error {
	return r.db.Model(&domain.Account{}).Where("id = ?", id).Update("status", status).Error
}

func (r *accountRepository) UpdateCheckpoint(id string, lastSyncAt time.Time, cursor string) error {
	return r.db.Model(&domain.Account{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_sync_at": lastSyncAt,
		"sync_cursor":  cursor,
	}).Error
}

func (r *accountRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&domain.Account{}).Error
}
