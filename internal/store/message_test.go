package store

import (
	"testing"

	"github.com/dukerupert/fellowship/internal/model"
)

func TestMessageListArrivalOrder(t *testing.T) {
	db := openTestDB(t)
	ms := NewMessageStore(db)
	us := NewUserStore(db)
	a := mustCreateUser(t, us, "a@example.com", "A", model.RoleUser)
	b := mustCreateUser(t, us, "b@example.com", "B", model.RoleUser)
	e := mustCreateEvent(t, db, "Picnic", model.EventStatusPublished)
	other := mustCreateEvent(t, db, "Other", model.EventStatusPublished)

	for i, m := range []struct {
		user    int64
		content string
	}{{a.ID, "first"}, {b.ID, "second"}, {a.ID, "third"}} {
		if _, err := ms.Create(e.ID, m.user, m.content); err != nil {
			t.Fatalf("create message %d: %v", i, err)
		}
	}
	ms.Create(other.ID, a.ID, "elsewhere")

	msgs, err := ms.ListByEvent(e.ID, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Content != want {
			t.Errorf("msgs[%d] = %q, want %q", i, msgs[i].Content, want)
		}
	}

	after, err := ms.ListByEvent(e.ID, msgs[0].ID)
	if err != nil {
		t.Fatalf("list after: %v", err)
	}
	if len(after) != 2 || after[0].Content != "second" {
		t.Errorf("after = %+v, want second and third", after)
	}
}

func TestMessageDelete(t *testing.T) {
	db := openTestDB(t)
	ms := NewMessageStore(db)
	u := mustCreateUser(t, NewUserStore(db), "a@example.com", "A", model.RoleUser)
	e := mustCreateEvent(t, db, "Picnic", model.EventStatusPublished)

	m, err := ms.Create(e.ID, u.ID, "oops")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ms.Delete(m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := ms.GetByID(m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}
