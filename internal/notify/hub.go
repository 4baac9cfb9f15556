package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"hr-workflow/internal/model"
)

// Hub fans notifications out to every live session of a user. Subscribers
// register per user; each session gets its own buffered channel.
type Hub struct {
	nextID   uint64
	mu       sync.RWMutex
	sessions map[string]map[uint64]chan *model.Notification
	buffer   int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		sessions: make(map[string]map[uint64]chan *model.Notification),
		buffer:   buffer,
	}
}

// Subscribe opens a session for userID. The channel is closed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, userID string) <-chan *model.Notification {
	ch := make(chan *model.Notification, h.buffer)
	id := atomic.AddUint64(&h.nextID, 1)

	h.mu.Lock()
	if h.sessions[userID] == nil {
		h.sessions[userID] = make(map[uint64]chan *model.Notification)
	}
	h.sessions[userID][id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.sessions[userID], id)
		if len(h.sessions[userID]) == 0 {
			delete(h.sessions, userID)
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Sessions returns the number of live sessions of userID.
func (h *Hub) Sessions(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

// Push delivers to every session of the recipient without blocking. A slow
// session drops the message; it stays readable from the inbox.
func (h *Hub) Push(ctx context.Context, d Delivery) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.sessions[d.Notification.RecipientID] {
		select {
		case ch <- d.Notification:
		default:
		}
	}
	return nil
}
