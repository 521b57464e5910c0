package service

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/fellowship/internal/auth"
	"github.com/dukerupert/fellowship/internal/authstate"
	"github.com/dukerupert/fellowship/internal/database"
	"github.com/dukerupert/fellowship/internal/store"
	"github.com/dukerupert/fellowship/internal/websocket"
)

type sent struct {
	topic  string
	userID int64
	msg    websocket.Message
}

// recordingHub captures everything services publish.
type recordingHub struct {
	mu   sync.Mutex
	sent []sent
}

func (h *recordingHub) Broadcast(msg websocket.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sent{msg: msg})
}

func (h *recordingHub) SendToUser(userID int64, msg websocket.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sent{userID: userID, msg: msg})
}

func (h *recordingHub) Publish(topic string, msg websocket.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sent{topic: topic, msg: msg})
}

func (h *recordingHub) ofType(typ string) []sent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []sent
	for _, s := range h.sent {
		if s.msg.Type == typ {
			out = append(out, s)
		}
	}
	return out
}

type fixture struct {
	db            *sql.DB
	hub           *recordingHub
	broker        *authstate.Broker
	users         *store.UserStore
	notifications *NotificationService
	events        *EventService
	chat          *ChatService
	logger        *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.Default()
	hub := &recordingHub{}
	ns := NewNotificationService(store.NewNotificationStore(db), hub, nil, logger)
	events := NewEventService(db, ns, hub, logger)
	return &fixture{
		db:            db,
		hub:           hub,
		broker:        authstate.NewBroker(logger),
		users:         store.NewUserStore(db),
		notifications: ns,
		events:        events,
		chat:          NewChatService(db, events, hub),
		logger:        logger,
	}
}

func (f *fixture) user(t *testing.T, email, name, role string) auth.AuthContext {
	t.Helper()
	u, err := f.users.Create(email, name, "hash", role)
	require.NoError(t, err)
	return auth.AuthContext{UserID: u.ID, Role: u.Role}
}

func (f *fixture) publishedEvent(t *testing.T, leader auth.AuthContext, title string) *EventView {
	t.Helper()
	ev, err := f.events.Create(leader, EventInput{Title: title, Date: time.Now().Add(48 * time.Hour)})
	require.NoError(t, err)
	ev, err = f.events.Publish(context.Background(), leader, ev.ID)
	require.NoError(t, err)
	return ev
}

func (f *fixture) nowPlus() time.Time {
	return time.Now().Add(24 * time.Hour)
}
