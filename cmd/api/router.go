package api

import (
	"net/http"

	"unibox-backend/internal/auth/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	authRequired := delivery.AuthMiddleware(h.config.JWTSecret)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Provider push ingress (providers authenticate out of band)
		api.POST("/webhooks/:provider", h.messageHandler.HandleWebhook)

		// SSE endpoint
		api.GET("/events", authRequired, func(c *gin.Context) {
			userID := c.GetString("userID")
			h.sseManager.ServeHTTP(c, userID)
		})

		// Linked provider accounts (protected)
		accounts := api.Group("/accounts")
		accounts.Use(authRequired)
		{
			accounts.POST("", h.accountHandler.LinkAccount)
			accounts.GET("", h.accountHandler.ListAccounts)
			accounts.GET("/:id", h.accountHandler.GetAccount)
			accounts.DELETE("/:id", h.accountHandler.UnlinkAccount)
		}

		// Unified inbox (protected)
		conversations := api.Group("/conversations")
		conversations.Use(authRequired)
		{
			conversations.GET("", h.messageHandler.GetConversations)
			conversations.GET("/:id/messages", h.messageHandler.GetConversationMessages)
		}

		messages := api.Group("/messages")
		messages.Use(authRequired)
		{
			messages.POST("/send", h.messageHandler.SendMessage)
			messages.DELETE("/:id", h.messageHandler.DeleteMessage)
		}

		// Sync trigger (protected)
		api.POST("/sync", authRequired, h.syncHandler.TriggerSync)

		// FCM device registrations (protected)
		fcmGroup := api.Group("/fcm")
		fcmGroup.Use(authRequired)
		{
			fcmGroup.POST("/register", h.tokenHandler.RegisterToken)
			fcmGroup.DELETE("/:token", h.tokenHandler.UnregisterToken)
		}
	}
}
