package console

import (
	"sync"
	"time"
)

// Event types pushed to connected front ends.
const (
	EventSelection    = "selection"
	EventTenants      = "tenants"
	EventBanner       = "banner"
	EventSettings     = "settings"
	EventIntegrations = "integrations"
	EventView         = "view"
)

// Event is one push notification on the workspace stream.
type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

const subscriberBuffer = 32

// Hub fans workspace events out to subscribers. Slow subscribers lose events
// rather than block publishers.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a func that closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

// Publish delivers an event to every subscriber without blocking.
func (h *Hub) Publish(eventType string, data any) {
	ev := Event{Type: eventType, At: time.Now().UTC(), Data: data}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers reports the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
