package sse

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gin-gonic/gin"
)

// Event is one server-sent event addressed to a user
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Manager fans realtime events out to every open SSE connection of a user
type Manager struct {
	mu      sync.RWMutex
	clients map[string]map[chan Event]struct{} // userID -> connections
}

func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]map[chan Event]struct{}),
	}
}

// SendToUser delivers an event to all of the user's open connections.
// Slow consumers are skipped rather than blocking the sender.
func (m *Manager) SendToUser(userID string, eventType string, payload interface{}) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for ch := range m.clients[userID] {
		select {
		case ch <- Event{Type: eventType, Payload: payload}:
		default:
		}
	}
}

// ServeHTTP streams events to one connection until the client disconnects
func (m *Manager) ServeHTTP(c *gin.Context, userID string) {
	ch := make(chan Event, 16)

	m.mu.Lock()
	if m.clients[userID] == nil {
		m.clients[userID] = make(map[chan Event]struct{})
	}
	m.clients[userID][ch] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.clients[userID], ch)
		if len(m.clients[userID]) == 0 {
			delete(m.clients, userID)
		}
		m.mu.Unlock()
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	flusher, ok := c.Writer.(interface{ Flush() })
	if !ok {
		log.Println("[SSE] Response writer does not support flushing")
		return
	}

	for {
		select {
		case event := <-ch:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", data)
			flusher.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}
