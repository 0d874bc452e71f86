package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	billingusecase "unibox-backend/internal/billing/usecase"
	messagedto "unibox-backend/internal/message/dto"
	"unibox-backend/internal/message/usecase"
	"unibox-backend/pkg/provider"
)

type MessageHandler struct {
	messageUsecase usecase.MessageUsecase
}

func NewMessageHandler(messageUsecase usecase.MessageUsecase) *MessageHandler {
	return &MessageHandler{
		messageUsecase: messageUsecase,
	}
}

func (h *MessageHandler) GetConversations(c *gin.Context) {
	userID := c.GetString("userID")
	limit, offset := pagination(c)

	conversations, total, err := h.messageUsecase.GetConversations(userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, messagedto.ConversationsResponse{
		Conversations: conversations,
		Limit:         limit,
		Offset:        offset,
		Total:         total,
	})
}

func (h *MessageHandler) GetConversationMessages(c *gin.Context) {
	userID := c.GetString("userID")
	limit, offset := pagination(c)

	messages, total, err := h.messageUsecase.GetConversationMessages(userID, c.Param("id"), limit, offset)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, messagedto.MessagesResponse{
		Messages: messages,
		Limit:    limit,
		Offset:   offset,
		Total:    total,
	})
}

func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req messagedto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")

	msg, err := h.messageUsecase.SendMessage(c.Request.Context(), userID, req.AccountID, req.To, req.Body, req.MediaURLs)
	if err != nil {
		respondSendError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.messageUsecase.DeleteMessage(userID, c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "message deleted"})
}

// HandleWebhook accepts provider-pushed events. Providers retry on non-2xx,
// so only payloads that can never succeed are rejected.
func (h *MessageHandler) HandleWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}

	if err := h.messageUsecase.IngestWebhook(c.Request.Context(), c.Param("provider"), payload); err != nil {
		if errors.Is(err, provider.ErrUnknownProvider) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "accepted"})
}

func respondSendError(c *gin.Context, err error) {
	var authErr *provider.AuthError
	var rateErr *provider.RateLimitError
	var validationErr *provider.ValidationError

	switch {
	case errors.Is(err, billingusecase.ErrQuotaExceeded):
		c.JSON(http.StatusForbidden, gin.H{"error": "subscription is not active"})
	case errors.As(err, &authErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.As(err, &rateErr):
		c.Header("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
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

func pagination(c *gin.Context) (int, int) {
	limit := 20
	offset := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
