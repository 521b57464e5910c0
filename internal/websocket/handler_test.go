package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/fellowship/internal/auth"
)

func withUser(userID int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID != 0 {
			r = r.WithContext(auth.WithAuth(r.Context(), auth.AuthContext{UserID: userID, Role: "user"}))
		}
		next.ServeHTTP(w, r)
	})
}

func TestHandleWebSocketRejectsAnonymous(t *testing.T) {
	hub := NewHub(slog.Default())
	srv := httptest.NewServer(withUser(0, HandleWebSocket(hub, nil, nil, slog.Default())))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestHandleWebSocketSubscribeAndReceive(t *testing.T) {
	hub := NewHub(slog.Default())
	allow := func(context.Context, int64, string) bool { return true }
	srv := httptest.NewServer(withUser(7, HandleWebSocket(hub, allow, nil, slog.Default())))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	read := func() Message {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return m
	}

	if err := conn.Write(ctx, ws.MessageText, []byte(`{"action":"subscribe","topic":"event:4"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m := read(); m.Type != "subscribed" {
		t.Fatalf("expected subscribed, got %s", m.Type)
	}

	for i := int64(1); i <= 3; i++ {
		hub.Publish(EventTopic(4), NewMessage("event_message", "created", i, nil))
	}
	for i := int64(1); i <= 3; i++ {
		m := read()
		if m.ID != i {
			t.Fatalf("expected message %d, got %d", i, m.ID)
		}
	}

	conn.Close(ws.StatusNormalClosure, "")
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := hub.SubscriberCount(EventTopic(4)); n != 0 {
		t.Errorf("expected subscription to end with connection, got %d", n)
	}
}
