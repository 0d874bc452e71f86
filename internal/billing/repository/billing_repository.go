package repository

import (
	"unibox-backend/internal/billing/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// subscriptionRepository implements SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new instance of subscriptionRepository
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) FindByOrg(orgID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.db.Where("org_id = ?", orgID).First(&sub).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// usageRepository implements UsageRepository interface
type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new instance of usageRepository
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) FindOrCreateByOrg(orgID string) (*domain.Usage, error) {
	var usage domain.Usage
	result := r.db.Where("org_id = ?", orgID).FirstOrCreate(&usage, domain.Usage{
		ID:    uuid.New().String(),
		OrgID: orgID,
	})
	if result.Error != nil {
		return nil, result.Error
	}
	return &usage, nil
}

func (r *usageRepository) Save(usage *domain.Usage) error {
	return r.db.Save(usage).Error
}
