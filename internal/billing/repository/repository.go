package repository

import "unibox-backend/internal/billing/domain"

// SubscriptionRepository reads the limits written by the external billing system
type SubscriptionRepository interface {
	FindByOrg(orgID string) (*domain.Subscription, error)
}

// UsageRepository tracks metered consumption per organization
type UsageRepository interface {
	FindOrCreateByOrg(orgID string) (*domain.Usage, error)
	Save(usage *domain.Usage) error
}
