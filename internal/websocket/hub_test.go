package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/fellowship/internal/authstate"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, userID int64) *Client {
	return &Client{
		hub:    hub,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
	}
}

func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func expectNone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected message: %s", data)
	default:
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 2)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1)
	hub.Register(c)
	hub.Subscribe(c, EventTopic(1))
	hub.Unregister(c)
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 2)
	hub.Register(c1)
	hub.Register(c2)

	hub.Broadcast(NewMessage("event", "published", 42, map[string]any{"title": "Retreat"}))

	for _, c := range []*Client{c1, c2} {
		got := recv(t, c)
		if got.Type != "event_published" {
			t.Errorf("expected type event_published, got %s", got.Type)
		}
		if got.ID != 42 {
			t.Errorf("expected id 42, got %d", got.ID)
		}
	}
}

func TestSendToUser(t *testing.T) {
	hub := NewHub(slog.Default())

	tab1 := mockClient(hub, 1)
	tab2 := mockClient(hub, 1)
	other := mockClient(hub, 2)
	for _, c := range []*Client{tab1, tab2, other} {
		hub.Register(c)
	}

	hub.SendToUser(1, Message{Type: "toast"})

	recv(t, tab1)
	recv(t, tab2)
	expectNone(t, other)
}

func TestPublishReachesSubscribersOnly(t *testing.T) {
	hub := NewHub(slog.Default())

	sub := mockClient(hub, 1)
	idle := mockClient(hub, 2)
	hub.Register(sub)
	hub.Register(idle)
	hub.Subscribe(sub, EventTopic(5))

	hub.Publish(EventTopic(5), NewMessage("event_message", "created", 9, nil))

	got := recv(t, sub)
	if got.Topic != "event:5" {
		t.Errorf("expected topic event:5, got %q", got.Topic)
	}
	expectNone(t, idle)

	hub.Unsubscribe(sub, EventTopic(5))
	hub.Publish(EventTopic(5), NewMessage("event_message", "created", 10, nil))
	expectNone(t, sub)
}

func TestSubscriptionsEndWithConnection(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1)
	hub.Register(c)
	hub.Subscribe(c, EventTopic(1))
	hub.Subscribe(c, EventTopic(2))

	hub.Unregister(c)

	if n := hub.SubscriberCount(EventTopic(1)); n != 0 {
		t.Errorf("expected no subscribers, got %d", n)
	}
	if n := hub.SubscriberCount(EventTopic(2)); n != 0 {
		t.Errorf("expected no subscribers, got %d", n)
	}
	// Publishing to the old topic must not touch the closed channel.
	hub.Publish(EventTopic(1), Message{Type: "x"})
}

func TestSubscribeUnregisteredIgnored(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1)
	hub.Subscribe(c, EventTopic(1))
	if n := hub.SubscriberCount(EventTopic(1)); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}
}

// Chat messages inserted concurrently must reach every subscriber in the
// same order.
func TestPublishArrivalOrder(t *testing.T) {
	hub := NewHub(slog.Default())
	topic := EventTopic(3)

	a := &Client{hub: hub, send: make(chan []byte, 256), userID: 1}
	b := &Client{hub: hub, send: make(chan []byte, 256), userID: 2}
	hub.Register(a)
	hub.Register(b)
	hub.Subscribe(a, topic)
	hub.Subscribe(b, topic)

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			hub.Publish(topic, NewMessage("event_message", "created", id, nil))
		}(int64(i))
	}
	wg.Wait()

	var orderA, orderB []int64
	for len(a.send) > 0 {
		orderA = append(orderA, recv(t, a).ID)
	}
	for len(b.send) > 0 {
		orderB = append(orderB, recv(t, b).ID)
	}
	if len(orderA) != 100 || len(orderB) != 100 {
		t.Fatalf("expected 100 messages each, got %d and %d", len(orderA), len(orderB))
	}
	for i := range orderA {
		if orderA[i] != orderB[i] {
			t.Fatalf("clients diverge at %d: %d vs %d", i, orderA[i], orderB[i])
		}
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	hub.Broadcast(NewMessage("event", "deleted", 1, nil))
	hub.Publish("event:1", NewMessage("event", "deleted", 1, nil))
	hub.SendToUser(1, NewMessage("event", "deleted", 1, nil))
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, 1)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewMessage("test", "fill", int64(i), nil))
	}

	// This should drop the message, not panic or block
	hub.Broadcast(NewMessage("test", "dropped", 999, nil))

	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestHandleAuthState(t *testing.T) {
	hub := NewHub(slog.Default())
	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 2)
	hub.Register(c1)
	hub.Register(c2)

	hub.HandleAuthState(authstate.Event{UserID: 1, Kind: authstate.KindRoleChanged, Role: "leader"})
	got := recv(t, c1)
	if got.Type != "auth_state_changed" {
		t.Errorf("expected auth_state_changed, got %s", got.Type)
	}
	expectNone(t, c2)

	hub.HandleAuthState(authstate.Event{Kind: authstate.KindLogout})
	recv(t, c1)
	recv(t, c2)
}

func TestHandleControl(t *testing.T) {
	hub := NewHub(slog.Default())
	allowed := EventTopic(1)
	c := mockClient(hub, 1)
	c.authorize = func(_ context.Context, _ int64, topic string) bool { return topic == allowed }
	hub.Register(c)

	c.handleControl(context.Background(), []byte(`{"action":"subscribe","topic":"event:1"}`))
	if got := recv(t, c); got.Type != "subscribed" {
		t.Errorf("expected subscribed, got %s", got.Type)
	}
	if n := hub.SubscriberCount(allowed); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}

	c.handleControl(context.Background(), []byte(`{"action":"subscribe","topic":"event:2"}`))
	if got := recv(t, c); got.Type != "subscribe_denied" {
		t.Errorf("expected subscribe_denied, got %s", got.Type)
	}
	if n := hub.SubscriberCount(EventTopic(2)); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}

	c.handleControl(context.Background(), []byte(`{"action":"unsubscribe","topic":"event:1"}`))
	if n := hub.SubscriberCount(allowed); n != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe, got %d", n)
	}

	c.handleControl(context.Background(), []byte(`not json`))
	expectNone(t, c)
}

func TestEventTopic(t *testing.T) {
	if got := EventTopic(12); got != "event:12" {
		t.Errorf("expected event:12, got %s", got)
	}
	if id, ok := ParseEventTopic("event:12"); !ok || id != 12 {
		t.Errorf("expected 12, got %d %v", id, ok)
	}
	for _, bad := range []string{"event:", "event:x", "event:-1", "chat:1", ""} {
		if _, ok := ParseEventTopic(bad); ok {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("event_attendance", "updated", 5, nil)
	if msg.Type != "event_attendance_updated" {
		t.Errorf("expected type event_attendance_updated, got %s", msg.Type)
	}
	if msg.Entity != "event_attendance" {
		t.Errorf("expected entity event_attendance, got %s", msg.Entity)
	}
	if msg.Action != "updated" {
		t.Errorf("expected action updated, got %s", msg.Action)
	}
	if msg.ID != 5 {
		t.Errorf("expected id 5, got %d", msg.ID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			c := mockClient(hub, uid)
			hub.Register(c)
			hub.Subscribe(c, EventTopic(1))
			hub.Publish(EventTopic(1), NewMessage("test", "concurrent", 0, nil))
			hub.Broadcast(NewMessage("test", "concurrent", 0, nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}(int64(i % 4))
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
