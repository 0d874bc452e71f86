package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	accountdomain "unibox-backend/internal/account/domain"
	accountrepo "unibox-backend/internal/account/repository"
	billingusecase "unibox-backend/internal/billing/usecase"
	messageusecase "unibox-backend/internal/message/usecase"
	"unibox-backend/pkg/provider"
)

// RunSummary reports the outcome of one sync run across all of a user's
// accounts
type RunSummary struct {
	UserID            string            `json:"user_id"`
	Processed         int               `json:"processed"`
	Skipped           int               `json:"skipped"`
	Failed            int               `json:"failed"`
	RateLimited       bool              `json:"rate_limited"`
	RetryAfterSeconds int               `json:"retry_after_seconds,omitempty"`
	AlreadyRunning    bool              `json:"already_running"`
	AccountErrors     map[string]string `json:"account_errors,omitempty"`
	StartedAt         time.Time         `json:"started_at"`
	DurationMs        int64             `json:"duration_ms"`
}

// SyncFilter narrows a run to one provider or one account. Zero value
// means every linked account.
type SyncFilter struct {
	Provider  string
	AccountID string
}

// SyncUsecase coordinates catch-up fetches across linked accounts
type SyncUsecase interface {
	// TriggerSync runs one catch-up pass for the user. Concurrent triggers
	// for the same user collapse into the in-flight run.
	TriggerSync(ctx context.Context, userID string, filter SyncFilter) (*RunSummary, error)

	// SyncAll sweeps every user with linked accounts, bounding concurrency
	SyncAll(ctx context.Context, filter SyncFilter)
}

type syncUsecase struct {
	accountRepo    accountrepo.AccountRepository
	messageUsecase messageusecase.MessageUsecase
	quota          billingusecase.QuotaGate
	registry       *provider.Registry
	runs           *RunRegistry
	retry          provider.RetryPolicy

	pageSize       int
	accountTimeout time.Duration
	sweepLimit     int
}

func NewSyncUsecase(
	accountRepo accountrepo.AccountRepository,
	messageUsecase messageusecase.MessageUsecase,
	quota billingusecase.QuotaGate,
	registry *provider.Registry,
	runs *RunRegistry,
	pageSize int,
	accountTimeout time.Duration,
	sweepLimit int,
) SyncUsecase {
	return &syncUsecase{
		accountRepo:    accountRepo,
		messageUsecase: messageUsecase,
		quota:          quota,
		registry:       registry,
		runs:           runs,
		retry:          provider.DefaultRetryPolicy(),
		pageSize:       pageSize,
		accountTimeout: accountTimeout,
		sweepLimit:     sweepLimit,
	}
}

func (u *syncUsecase) TriggerSync(ctx context.Context, userID string, filter SyncFilter) (*RunSummary, error) {
	summary := &RunSummary{
		UserID:        userID,
		StartedAt:     time.Now(),
		AccountErrors: make(map[string]string),
	}

	if !u.runs.TryAcquire(userID) {
		summary.AlreadyRunning = true
		return summary, nil
	}
	defer u.runs.Release(userID)

	accounts, err := u.accountRepo.FindByUser(userID)
	if err != nil {
		return nil, err
	}

	for _, account := range accounts {
		if filter.AccountID != "" && account.ID != filter.AccountID {
			continue
		}
		if filter.Provider != "" && account.Provider != filter.Provider {
			continue
		}
		if account.Status == accountdomain.StatusDisconnected {
			continue
		}
		if account.Status == accountdomain.StatusError && filter.AccountID == "" {
			// A broken credential fails the same way every sweep. Leave the
			// account alone until a trigger names it explicitly, typically
			// after the user re-authorized with the provider.
			continue
		}

		active, err := u.quota.CheckActive(account.OrgID)
		if err != nil {
			summary.AccountErrors[account.ID] = err.Error()
			continue
		}
		if !active {
			// Inactive organizations are paused, not broken
			continue
		}

		accountCtx, cancel := context.WithTimeout(ctx, u.accountTimeout)
		u.syncAccount(accountCtx, account, summary)
		cancel()

		if ctx.Err() != nil {
			break
		}
	}

	summary.DurationMs = time.Since(summary.StartedAt).Milliseconds()
	log.Printf("[Sync] User %s: processed=%d skipped=%d failed=%d rate_limited=%v errors=%d",
		userID, summary.Processed, summary.Skipped, summary.Failed, summary.RateLimited, len(summary.AccountErrors))
	return summary, nil
}

// syncAccount pages through the provider's backlog. The checkpoint moves
// only after a page ingests with zero failures, so a crash or a bad page
// re-fetches rather than loses messages.
func (u *syncUsecase) syncAccount(ctx context.Context, account *accountdomain.Account, summary *RunSummary) {
	adapter, err := u.registry.Get(account.Provider)
	if err != nil {
		summary.AccountErrors[account.ID] = err.Error()
		return
	}

	cursor := account.SyncCursor
	since := account.LastSyncAt

	for {
		req := provider.FetchRequest{Since: since, Cursor: cursor, PageSize: u.pageSize}

		var page *provider.FetchResult
		err := u.retry.Do(ctx, func() error {
			var ferr error
			page, ferr = adapter.FetchMessages(ctx, account, req)
			return ferr
		})
		if err != nil {
			u.recordFetchError(account, err, summary)
			return
		}

		batch := u.messageUsecase.IngestBatch(ctx, account, page.Messages)
		summary.Processed += batch.Processed
		summary.Skipped += batch.Skipped
		summary.Failed += batch.Failed

		if batch.Failed > 0 {
			// Leave the checkpoint put; the next run re-fetches this window
			summary.AccountErrors[account.ID] = "ingestion failures, checkpoint not advanced"
			return
		}

		u.advanceCheckpoint(account, page)

		if page.RateLimited {
			summary.RateLimited = true
			if page.RetryAfterSeconds > summary.RetryAfterSeconds {
				summary.RetryAfterSeconds = page.RetryAfterSeconds
			}
			return
		}
		if page.NextCursor == "" {
			if account.Status == accountdomain.StatusError {
				if err := u.accountRepo.UpdateStatus(account.ID, accountdomain.StatusConnected); err != nil {
					log.Printf("[Sync] Failed to restore account %s status: %v", account.ID, err)
				}
			}
			return
		}
		cursor = page.NextCursor
	}
}

// advanceCheckpoint persists both checkpoint representations: the watermark
// timestamp moves to the newest ingested message, the cursor to whatever the
// provider handed back
func (u *syncUsecase) advanceCheckpoint(account *accountdomain.Account, page *provider.FetchResult) {
	watermark := time.Time{}
	if account.LastSyncAt != nil {
		watermark = *account.LastSyncAt
	}
	for _, msg := range page.Messages {
		if msg.SentAt.After(watermark) {
			watermark = msg.SentAt
		}
	}
	if watermark.IsZero() {
		if page.NextCursor == account.SyncCursor {
			return
		}
		// Cursor moved on an empty page; stamp the sweep time so the
		// watermark column never stays null once a cursor exists
		watermark = time.Now()
	}

	if err := u.accountRepo.UpdateCheckpoint(account.ID, watermark, page.NextCursor); err != nil {
		log.Printf("[Sync] Failed to advance checkpoint for account %s: %v", account.ID, err)
		return
	}
	account.LastSyncAt = &watermark
	account.SyncCursor = page.NextCursor
}

func (u *syncUsecase) recordFetchError(account *accountdomain.Account, err error, summary *RunSummary) {
	var authErr *provider.AuthError
	var rateErr *provider.RateLimitError

	switch {
	case errors.As(err, &authErr):
		if uerr := u.accountRepo.UpdateStatus(account.ID, accountdomain.StatusError); uerr != nil {
			log.Printf("[Sync] Failed to mark account %s as errored: %v", account.ID, uerr)
		}
		summary.AccountErrors[account.ID] = authErr.Error()
	case errors.As(err, &rateErr):
		summary.RateLimited = true
		if rateErr.RetryAfterSeconds > summary.RetryAfterSeconds {
			summary.RetryAfterSeconds = rateErr.RetryAfterSeconds
		}
	default:
		summary.AccountErrors[account.ID] = err.Error()
	}
}

func (u *syncUsecase) SyncAll(ctx context.Context, filter SyncFilter) {
	userIDs, err := u.accountRepo.ListUserIDs()
	if err != nil {
		log.Printf("[Sync] Failed to list users for sweep: %v", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.sweepLimit)
	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			if _, err := u.TriggerSync(gctx, userID, filter); err != nil {
				log.Printf("[Sync] Sweep failed for user %s: %v", userID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("[Sync] Sweep aborted: %v", err)
	}
}
