package services

import (
	"sync"
	"time"
)

const (
	EventProjectStageChanged = "project.stage_changed"
	EventWorkerAssigned      = "worker.assigned"
	EventWorkerRemoved       = "worker.removed"
)

// StageEvent is a committed change pushed to SSE subscribers
type StageEvent struct {
	Type         string    `json:"type"`
	ProjectID    string    `json:"projectId"`
	From         string    `json:"from,omitempty"`
	To           string    `json:"to,omitempty"`
	AssignmentID string    `json:"assignmentId,omitempty"`
	ProfileID    string    `json:"profileId,omitempty"`
	ActorID      string    `json:"actorId,omitempty"`
	At           time.Time `json:"at"`
}

// SSEHub manages SSE client connections and event broadcasting
type SSEHub struct {
	clients map[string]chan StageEvent
	mu      sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]chan StageEvent),
	}
}

// Subscribe registers a new client and returns a channel for receiving events
func (h *SSEHub) Subscribe(clientID string) <-chan StageEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan StageEvent, 100)
	h.clients[clientID] = ch
	return ch
}

// Unsubscribe removes a client from the hub
func (h *SSEHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// Publish broadcasts an event to all connected clients. Slow clients miss
// events rather than block the publisher.
func (h *SSEHub) Publish(event StageEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

// ClientCount returns the number of connected clients
func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
