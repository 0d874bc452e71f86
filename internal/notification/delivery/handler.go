package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"unibox-backend/internal/notification/domain"
	"unibox-backend/internal/notification/repository"
)

type DeviceTokenHandler struct {
	tokenRepo repository.DeviceTokenRepository
}

func NewDeviceTokenHandler(tokenRepo repository.DeviceTokenRepository) *DeviceTokenHandler {
	return &DeviceTokenHandler{
		tokenRepo: tokenRepo,
	}
}

type registerTokenRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

func (h *DeviceTokenHandler) RegisterToken(c *gin.Context) {
	var req registerTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token := &domain.DeviceToken{
		ID:         uuid.New().String(),
		UserID:     c.GetString("userID"),
		Token:      req.Token,
		DeviceInfo: req.DeviceInfo,
	}
	if err := h.tokenRepo.Save(token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "token registered"})
}

func (h *DeviceTokenHandler) UnregisterToken(c *gin.Context) {
	if err := h.tokenRepo.DeleteToken(c.Param("token")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "token unregistered"})
}
