package delivery

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"unibox-backend/internal/account/dto"
	"unibox-backend/internal/account/usecase"
	billingusecase "unibox-backend/internal/billing/usecase"
	"unibox-backend/pkg/provider"
)

type AccountHandler struct {
	accountUsecase usecase.AccountUsecase
}

func NewAccountHandler(accountUsecase usecase.AccountUsecase) *AccountHandler {
	return &AccountHandler{
		accountUsecase: accountUsecase,
	}
}

func (h *AccountHandler) LinkAccount(c *gin.Context) {
	var req dto.LinkAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	orgID := c.GetString("orgID")

	account, err := h.accountUsecase.LinkAccount(c.Request.Context(), userID, orgID, req.Provider, []byte(req.Credential), req.ExternalID)
	if err != nil {
		respondLinkError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToAccountResponse(account))
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	userID := c.GetString("userID")

	accounts, err := h.accountUsecase.ListAccounts(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.AccountsResponse{Accounts: make([]dto.AccountResponse, 0, len(accounts))}
	for _, account := range accounts {
		resp.Accounts = append(resp.Accounts, dto.ToAccountResponse(account))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	userID := c.GetString("userID")

	account, err := h.accountUsecase.GetAccount(userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, usecase.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}

func (h *AccountHandler) UnlinkAccount(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.accountUsecase.UnlinkAccount(userID, c.Param("id")); err != nil {
		if errors.Is(err, usecase.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "account unlinked"})
}

func respondLinkError(c *gin.Context, err error) {
	var authErr *provider.AuthError
	var validationErr *provider.ValidationError

	switch {
	case errors.Is(err, billingusecase.ErrQuotaExceeded):
		c.JSON(http.StatusForbidden, gin.H{"error": "connection limit reached, upgrade your plan or unlink an account"})
	case errors.Is(err, provider.ErrUnknownProvider):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &authErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     err.Error(),
			"available": validationErr.Available,
		})
	case errors.Is(err, provider.ErrProviderUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "provider unavailable, try again later"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
