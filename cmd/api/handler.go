package api

import (
	accountDelivery "unibox-backend/internal/account/delivery"
	accountUsecasePkg "unibox-backend/internal/account/usecase"
	messageDelivery "unibox-backend/internal/message/delivery"
	messageUsecasePkg "unibox-backend/internal/message/usecase"
	notificationDelivery "unibox-backend/internal/notification/delivery"
	notificationRepo "unibox-backend/internal/notification/repository"
	syncDelivery "unibox-backend/internal/sync/delivery"
	syncUsecasePkg "unibox-backend/internal/sync/usecase"
	"unibox-backend/pkg/config"
	"unibox-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	accountUsecase accountUsecasePkg.AccountUsecase
	messageUsecase messageUsecasePkg.MessageUsecase
	syncUsecase    syncUsecasePkg.SyncUsecase
	sseManager     *sse.Manager
	config         *config.Config

	accountHandler *accountDelivery.AccountHandler
	messageHandler *messageDelivery.MessageHandler
	syncHandler    *syncDelivery.SyncHandler
	tokenHandler   *notificationDelivery.DeviceTokenHandler
}

func NewHandler(
	accountUc accountUsecasePkg.AccountUsecase,
	messageUc messageUsecasePkg.MessageUsecase,
	syncUc syncUsecasePkg.SyncUsecase,
	sseManager *sse.Manager,
	tokenRepo notificationRepo.DeviceTokenRepository,
	cfg *config.Config,
) *Handler {
	return &Handler{
		accountUsecase: accountUc,
		messageUsecase: messageUc,
		syncUsecase:    syncUc,
		sseManager:     sseManager,
		config:         cfg,
		accountHandler: accountDelivery.NewAccountHandler(accountUc),
		messageHandler: messageDelivery.NewMessageHandler(messageUc),
		syncHandler:    syncDelivery.NewSyncHandler(syncUc),
		tokenHandler:   notificationDelivery.NewDeviceTokenHandler(tokenRepo),
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()
	gin.SetMode(gin.ReleaseMode)

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h)

	return r.Run(addr)
}
