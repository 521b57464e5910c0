package store

import (
	"testing"
	"time"

	"github.com/dukerupert/fellowship/internal/model"
)

func TestEventCreateAndGetByID(t *testing.T) {
	db := openTestDB(t)
	es := NewEventStore(db)
	us := NewUserStore(db)
	leader := mustCreateUser(t, us, "lead@example.com", "Lead", model.RoleLeader)

	date := time.Date(2026, 11, 7, 18, 30, 0, 0, time.UTC)
	e, err := es.Create("Potluck", "Bring a dish", date, model.EventStatusDraft, "Fellowship Hall", &leader.ID)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if e.Title != "Potluck" {
		t.Errorf("title = %q, want %q", e.Title, "Potluck")
	}
	if e.Status != model.EventStatusDraft {
		t.Errorf("status = %q, want %q", e.Status, model.EventStatusDraft)
	}
	if !e.Date.Equal(date) {
		t.Errorf("date = %v, want %v", e.Date, date)
	}
	if e.CreatedBy == nil || *e.CreatedBy != leader.ID {
		t.Errorf("created_by = %v, want %d", e.CreatedBy, leader.ID)
	}

	got, err := es.GetByID(e.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Location != "Fellowship Hall" {
		t.Errorf("location = %q, want %q", got.Location, "Fellowship Hall")
	}
}

func TestEventGetByIDNotFound(t *testing.T) {
	es := NewEventStore(openTestDB(t))

	got, err := es.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent event")
	}
}

func TestEventInvalidStatus(t *testing.T) {
	es := NewEventStore(openTestDB(t))

	if _, err := es.Create("Bad", "", time.Now(), "archived", "", nil); err == nil {
		t.Fatal("expected CHECK constraint error for unknown status")
	}
}

func TestEventListFilters(t *testing.T) {
	es := NewEventStore(openTestDB(t))

	base := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	es.Create("Later", "", base.AddDate(0, 0, 10), model.EventStatusPublished, "", nil)
	es.Create("Sooner", "", base.AddDate(0, 0, 1), model.EventStatusPublished, "", nil)
	es.Create("Hidden", "", base.AddDate(0, 0, 2), model.EventStatusDraft, "", nil)

	all, err := es.List(EventFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d events, want 3", len(all))
	}
	if all[0].Title != "Sooner" {
		t.Errorf("first event = %q, want Sooner (date order)", all[0].Title)
	}

	published, err := es.List(EventFilter{Status: model.EventStatusPublished})
	if err != nil {
		t.Fatalf("list published: %v", err)
	}
	if len(published) != 2 {
		t.Errorf("got %d published, want 2", len(published))
	}

	windowed, err := es.List(EventFilter{From: base, To: base.AddDate(0, 0, 5)})
	if err != nil {
		t.Fatalf("list window: %v", err)
	}
	if len(windowed) != 2 {
		t.Errorf("got %d in window, want 2", len(windowed))
	}
}

func TestEventUpdateAndSetStatus(t *testing.T) {
	db := openTestDB(t)
	es := NewEventStore(db)
	e := mustCreateEvent(t, db, "Study", model.EventStatusDraft)

	newDate := time.Date(2026, 12, 1, 19, 0, 0, 0, time.UTC)
	updated, err := es.Update(e.ID, "Bible Study", "Romans 8", newDate, "Room 2")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Bible Study" || updated.Location != "Room 2" {
		t.Errorf("update not applied: %+v", updated)
	}

	published, err := es.SetStatus(e.ID, model.EventStatusPublished)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if published.Status != model.EventStatusPublished {
		t.Errorf("status = %q, want published", published.Status)
	}
}

func TestEventDeleteCascades(t *testing.T) {
	db := openTestDB(t)
	es := NewEventStore(db)
	us := NewUserStore(db)
	as := NewAttendanceStore(db)
	ms := NewMessageStore(db)

	u := mustCreateUser(t, us, "alice@example.com", "Alice", model.RoleUser)
	e := mustCreateEvent(t, db, "Picnic", model.EventStatusPublished)
	if _, err := as.Upsert(e.ID, u.ID, model.AttendanceConfirmed); err != nil {
		t.Fatalf("upsert attendance: %v", err)
	}
	if _, err := ms.Create(e.ID, u.ID, "see you there"); err != nil {
		t.Fatalf("create message: %v", err)
	}

	if err := es.Delete(e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	list, err := as.ListByEvent(e.ID)
	if err != nil {
		t.Fatalf("list attendances: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected attendances to cascade, got %d", len(list))
	}
	msgs, err := ms.ListByEvent(e.ID, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected messages to cascade, got %d", len(msgs))
	}
}
