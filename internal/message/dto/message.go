package dto

import "unibox-backend/internal/message/domain"

type SendMessageRequest struct {
	AccountID string   `json:"account_id" binding:"required"`
	To        string   `json:"to" binding:"required"`
	Body      string   `json:"body"`
	MediaURLs []string `json:"media_urls"`
}

type ConversationsResponse struct {
	Conversations []*domain.Conversation `json:"conversations"`
	Limit         int                    `json:"limit"`
	Offset        int                    `json:"offset"`
	Total         int64                  `json:"total"`
}

type MessagesResponse struct {
	Messages []*domain.Message `json:"messages"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
	Total    int64             `json:"total"`
}
