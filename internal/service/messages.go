package service

import (
	"database/sql"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dukerupert/fellowship/internal/auth"
	"github.com/dukerupert/fellowship/internal/model"
	"github.com/dukerupert/fellowship/internal/store"
	"github.com/dukerupert/fellowship/internal/websocket"
)

const maxMessageLength = 2000

// MessageView is a chat message with the author's display name attached.
type MessageView struct {
	ID          int64     `json:"id"`
	EventID     int64     `json:"eventId"`
	UserID      int64     `json:"userId"`
	DisplayName string    `json:"displayName"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ChatService handles per-event chat.
type ChatService struct {
	events   *EventService
	messages *store.MessageStore
	users    *store.UserStore
	hub      Publisher

	// mu keeps the insert and the push of a message together so
	// subscribers see ids in ascending order.
	mu sync.Mutex
}

func NewChatService(db *sql.DB, events *EventService, hub Publisher) *ChatService {
	if hub == nil {
		hub = nopPublisher{}
	}
	return &ChatService{
		events:   events,
		messages: store.NewMessageStore(db),
		users:    store.NewUserStore(db),
		hub:      hub,
	}
}

// List returns an event's messages in arrival order. A non-zero afterID
// returns only newer messages, for catching up after a reconnect.
func (s *ChatService) List(actor auth.AuthContext, eventID, afterID int64) ([]MessageView, error) {
	if _, err := s.events.load(actor, eventID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByEvent(eventID, afterID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.UserID)
	}
	names, err := loadNames(s.users, ids)
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, messageView(m, names))
	}
	return views, nil
}

func messageView(m model.EventMessage, names nameTable) MessageView {
	return MessageView{
		ID:          m.ID,
		EventID:     m.EventID,
		UserID:      m.UserID,
		DisplayName: names.name(m.UserID),
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
	}
}

// Post stores a message and pushes it to the event's chat subscribers.
func (s *ChatService) Post(actor auth.AuthContext, eventID int64, content string) (*MessageView, error) {
	if content == "" {
		return nil, invalid("content", "is required")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, invalid("content", "is too long")
	}
	if _, err := s.events.load(actor, eventID); err != nil {
		return nil, err
	}

	names, err := loadNames(s.users, []int64{actor.UserID})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.messages.Create(eventID, actor.UserID, content)
	if err != nil {
		return nil, err
	}
	v := messageView(*m, names)

	msg := websocket.NewMessage("event_message", "created", m.ID, nil)
	msg.Payload = v
	s.hub.Publish(websocket.EventTopic(eventID), msg)
	return &v, nil
}

// Delete removes a message. Authors and leaders may delete.
func (s *ChatService) Delete(actor auth.AuthContext, id int64) error {
	m, err := s.messages.GetByID(id)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrNotFound
	}
	if m.UserID != actor.UserID && !auth.Satisfies(actor.Role, model.RoleLeader) {
		return ErrForbidden
	}
	if err := s.messages.Delete(id); err != nil {
		return err
	}
	s.hub.Publish(websocket.EventTopic(m.EventID), websocket.NewMessage("event_message", "deleted", id, nil))
	return nil
}
