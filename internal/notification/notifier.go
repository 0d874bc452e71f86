package notification

import (
	"context"
	"fmt"
	"log"

	"unibox-backend/internal/notification/repository"
	"unibox-backend/pkg/fcm"
	"unibox-backend/pkg/sse"
)

// Notifier fans new-message events out over SSE to open browser sessions
// and over FCM to registered devices. Dead device tokens are pruned after
// each multicast.
type Notifier struct {
	sseManager *sse.Manager
	fcmClient  *fcm.Client
	tokenRepo  repository.DeviceTokenRepository
}

func NewNotifier(sseManager *sse.Manager, fcmClient *fcm.Client, tokenRepo repository.DeviceTokenRepository) *Notifier {
	return &Notifier{
		sseManager: sseManager,
		fcmClient:  fcmClient,
		tokenRepo:  tokenRepo,
	}
}

// SendToUser delivers one event to all of the user's channels
func (n *Notifier) SendToUser(userID string, eventType string, payload interface{}) {
	n.sseManager.SendToUser(userID, eventType, payload)

	if n.fcmClient == nil || n.tokenRepo == nil {
		return
	}
	go n.push(userID, eventType, payload)
}

func (n *Notifier) push(userID string, eventType string, payload interface{}) {
	tokens, err := n.tokenRepo.GetTokensByUserID(userID)
	if err != nil {
		log.Printf("[FCM] Error getting device tokens for user %s: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	var tokenStrings []string
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	title, body, data := n.describe(eventType, payload)

	failedTokens, err := n.fcmClient.SendToDevices(context.Background(), tokenStrings, fcm.NotificationData{
		Title: title,
		Body:  body,
		Data:  data,
	})
	if err != nil {
		log.Printf("[FCM] Error sending notifications to user %s: %v", userID, err)
		return
	}

	for _, token := range failedTokens {
		if err := n.tokenRepo.DeleteToken(token); err != nil {
			log.Printf("[FCM] Failed to prune dead token: %v", err)
		}
	}
}

func (n *Notifier) describe(eventType string, payload interface{}) (string, string, map[string]string) {
	data := map[string]string{"type": eventType, "click_action": "/inbox"}

	fields, _ := payload.(map[string]interface{})
	if providerName, ok := fields["provider"].(string); ok {
		data["provider"] = providerName
	}

	count := 0
	if c, ok := fields["count"].(int); ok {
		count = c
	}

	title := "New messages"
	body := "You have new messages in your inbox"
	if count == 1 {
		body = "You have a new message in your inbox"
	} else if count > 1 {
		body = fmt.Sprintf("You have %d new messages in your inbox", count)
	}
	return title, body, data
}
