package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a change notification pushed to the viewers of one topic.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     string         `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub tracks connected clients grouped by topic. A topic is a session id, so
// a message only ever reaches the browser tabs of the session it belongs to.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*Client]struct{}
	onEmpty func(topic string)
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*Client]struct{}),
		logger: logger,
	}
}

// OnEmpty sets fn to be called, outside the hub lock, whenever the last client
// of a topic unregisters.
func (h *Hub) OnEmpty(fn func(topic string)) {
	h.mu.Lock()
	h.onEmpty = fn
	h.mu.Unlock()
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.topics[c.topic]
	if !ok {
		set = make(map[*Client]struct{})
		h.topics[c.topic] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel. It is safe to call
// more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set := h.topics[c.topic]
	if _, ok := set[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	close(c.send)
	empty := len(set) == 0
	if empty {
		delete(h.topics, c.topic)
	}
	fn := h.onEmpty
	h.mu.Unlock()

	if empty && fn != nil {
		fn(c.topic)
	}
}

// Publish sends msg to every client of topic. Slow clients drop the message.
func (h *Hub) Publish(topic string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.topics[topic] {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("client buffer full, dropping message", "topic", topic, "type", msg.Type)
		}
	}
}

// ClientCount returns the number of clients connected to topic.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Total returns the number of connected clients across all topics.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.topics {
		n += len(set)
	}
	return n
}
