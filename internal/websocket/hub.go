package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dukerupert/fellowship/internal/authstate"
)

// Message is a realtime notification sent to clients.
type Message struct {
	Type    string         `json:"type"`
	Entity  string         `json:"entity,omitempty"`
	Action  string         `json:"action,omitempty"`
	ID      int64          `json:"id,omitempty"`
	Topic   string         `json:"topic,omitempty"`
	Payload any            `json:"payload,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// EventTopic names the chat topic of an event.
func EventTopic(eventID int64) string {
	return "event:" + strconv.FormatInt(eventID, 10)
}

// ParseEventTopic returns the event id in an "event:<id>" topic.
func ParseEventTopic(topic string) (int64, bool) {
	rest, ok := strings.CutPrefix(topic, "event:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Hub tracks connected clients by user and by topic subscription.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	users   map[int64]map[*Client]struct{}
	topics  map[string]map[*Client]struct{}
	logger  *slog.Logger
	gauge   prometheus.Gauge
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		users:   make(map[int64]map[*Client]struct{}),
		topics:  make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

// TrackClients reports the connected client count to g.
func (h *Hub) TrackClients(g prometheus.Gauge) {
	h.mu.Lock()
	h.gauge = g
	h.gauge.Set(float64(len(h.clients)))
	h.mu.Unlock()
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	set, ok := h.users[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.users[c.userID] = set
	}
	set[c] = struct{}{}
	h.updateGauge()
}

// Unregister removes a client and its subscriptions and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if set := h.users[c.userID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.userID)
		}
	}
	for topic := range c.topics {
		h.removeFromTopic(c, topic)
	}
	c.topics = nil
	close(c.send)
	h.updateGauge()
}

// Subscribe adds c to topic. It is a no-op for unregistered clients.
func (h *Hub) Subscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	set, ok := h.topics[topic]
	if !ok {
		set = make(map[*Client]struct{})
		h.topics[topic] = set
	}
	set[c] = struct{}{}
	if c.topics == nil {
		c.topics = make(map[string]struct{})
	}
	c.topics[topic] = struct{}{}
}

// Unsubscribe removes c from topic.
func (h *Hub) Unsubscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromTopic(c, topic)
	delete(c.topics, topic)
}

func (h *Hub) removeFromTopic(c *Client, topic string) {
	set := h.topics[topic]
	if set == nil {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.topics, topic)
	}
}

func (h *Hub) updateGauge() {
	if h.gauge != nil {
		h.gauge.Set(float64(len(h.clients)))
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	h.deliver(msg, func() map[*Client]struct{} { return h.clients })
}

// SendToUser sends a message to every connection of one user.
func (h *Hub) SendToUser(userID int64, msg Message) {
	h.deliver(msg, func() map[*Client]struct{} { return h.users[userID] })
}

// Publish sends a message to the subscribers of topic.
func (h *Hub) Publish(topic string, msg Message) {
	msg.Topic = topic
	h.deliver(msg, func() map[*Client]struct{} { return h.topics[topic] })
}

// deliver enqueues under the write lock so every client sees messages in
// the order the hub accepted them.
func (h *Hub) deliver(msg Message, targets func() map[*Client]struct{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "type", msg.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range targets() {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client buffer full, dropping message", "user_id", c.userID, "type", msg.Type)
		}
	}
}

// HandleAuthState tells the affected user's connections to re-run their
// access checks. A zero UserID reaches everyone.
func (h *Hub) HandleAuthState(ev authstate.Event) {
	msg := Message{Type: "auth_state_changed", Payload: ev}
	if ev.UserID == 0 {
		h.Broadcast(msg)
		return
	}
	h.SendToUser(ev.UserID, msg)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of clients subscribed to topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
