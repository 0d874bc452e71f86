package dto

import (
	"encoding/json"
	"time"

	"unibox-backend/internal/account/domain"
)

type LinkAccountRequest struct {
	Provider   string          `json:"provider" binding:"required"`
	ExternalID string          `json:"external_id" binding:"required"`
	Credential json.RawMessage `json:"credential" binding:"required"`
}

// AccountResponse never echoes the credential blob back
type AccountResponse struct {
	ID         string     `json:"id"`
	Provider   string     `json:"provider"`
	ExternalID string     `json:"external_id"`
	Status     string     `json:"status"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func ToAccountResponse(account *domain.Account) AccountResponse {
	return AccountResponse{
		ID:         account.ID,
		Provider:   account.Provider,
		ExternalID: account.ExternalID,
		Status:     string(account.Status),
		LastSyncAt: account.LastSyncAt,
		CreatedAt:  account.CreatedAt,
	}
}

type AccountsResponse struct {
	Accounts []AccountResponse `json:"accounts"`
}
