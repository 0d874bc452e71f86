package usecase

import (
	"errors"
	"log"

	"unibox-backend/internal/billing/repository"
)

// ErrQuotaExceeded blocks the requested operation. Surfaced to the user as
// actionable (upgrade or free capacity); never retried automatically.
var ErrQuotaExceeded = errors.New("quota exceeded")

// ConnectionCounter reports how many provider accounts an organization has
// linked. Implemented by the account repository; declared here to keep
// billing free of an account-package dependency.
type ConnectionCounter interface {
	CountByOrg(orgID string) (int64, error)
}

// QuotaGate checks and meters usage against an organization's subscription
// limits before sync, send, and link operations proceed
type QuotaGate interface {
	CheckConnectionLimit(orgID string) (bool, error)
	RecordStorageDelta(orgID string, bytesDelta int64) error
	CheckActive(orgID string) (bool, error)
	ConsumeAICredits(orgID string, credits int64) error
}

// quotaGate implements QuotaGate interface
type quotaGate struct {
	subscriptionRepo repository.SubscriptionRepository
	usageRepo        repository.UsageRepository
	connections      ConnectionCounter
}

// NewQuotaGate creates a new instance of quotaGate
func NewQuotaGate(subscriptionRepo repository.SubscriptionRepository, usageRepo repository.UsageRepository, connections ConnectionCounter) QuotaGate {
	return &quotaGate{
		subscriptionRepo: subscriptionRepo,
		usageRepo:        usageRepo,
		connections:      connections,
	}
}

// CheckConnectionLimit reports whether the organization may link one more
// provider account
func (g *quotaGate) CheckConnectionLimit(orgID string) (bool, error) {
	sub, err := g.subscriptionRepo.FindByOrg(orgID)
	if err != nil {
		return false, err
	}
	if sub == nil {
		// No subscription row means billing has not provisioned the org yet
		return false, nil
	}

	count, err := g.connections.CountByOrg(orgID)
	if err != nil {
		return false, err
	}
	return count < int64(sub.MaxConnections), nil
}

// RecordStorageDelta applies a signed byte delta to the organization's
// cumulative storage counter, clamping at zero on large deletions
func (g *quotaGate) RecordStorageDelta(orgID string, bytesDelta int64) error {
	if bytesDelta == 0 {
		return nil
	}

	usage, err := g.usageRepo.FindOrCreateByOrg(orgID)
	if err != nil {
		return err
	}

	usage.StorageBytes += bytesDelta
	if usage.StorageBytes < 0 {
		log.Printf("[QuotaGate] Storage counter for org %s went negative (%d), clamping to 0", orgID, usage.StorageBytes)
		usage.StorageBytes = 0
	}
	return g.usageRepo.Save(usage)
}

// CheckActive reports whether the organization's subscription is in an
// access-granting state. Inactive organizations are skipped by the sync
// orchestrator, not errored.
func (g *quotaGate) CheckActive(orgID string) (bool, error) {
	sub, err := g.subscriptionRepo.FindByOrg(orgID)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, nil
	}
	return sub.Status.AccessGranting(), nil
}

// ConsumeAICredits meters AI credit usage against the subscription's limit
func (g *quotaGate) ConsumeAICredits(orgID string, credits int64) error {
	if credits <= 0 {
		return nil
	}

	sub, err := g.subscriptionRepo.FindByOrg(orgID)
	if err != nil {
		return err
	}
	if sub == nil {
		return ErrQuotaExceeded
	}

	usage, err := g.usageRepo.FindOrCreateByOrg(orgID)
	if err != nil {
		return err
	}
	if usage.AICreditsUsed+credits > sub.AICreditLimit {
		return ErrQuotaExceeded
	}

	usage.AICreditsUsed += credits
	return g.usageRepo.Save(usage)
}
