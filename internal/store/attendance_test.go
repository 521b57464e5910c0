package store

import (
	"testing"

	"github.com/dukerupert/fellowship/internal/model"
)

func TestAttendanceUpsertReplacesStatus(t *testing.T) {
	db := openTestDB(t)
	as := NewAttendanceStore(db)
	u := mustCreateUser(t, NewUserStore(db), "alice@example.com", "Alice", model.RoleUser)
	e := mustCreateEvent(t, db, "Picnic", model.EventStatusPublished)

	first, err := as.Upsert(e.ID, u.ID, model.AttendanceMaybe)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := as.Upsert(e.ID, u.ID, model.AttendanceConfirmed)
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("upsert created a new row: %d != %d", first.ID, second.ID)
	}
	if second.Status != model.AttendanceConfirmed {
		t.Errorf("status = %q, want confirmed", second.Status)
	}
}

func TestAttendanceInvalidStatus(t *testing.T) {
	db := openTestDB(t)
	as := NewAttendanceStore(db)
	u := mustCreateUser(t, NewUserStore(db), "alice@example.com", "Alice", model.RoleUser)
	e := mustCreateEvent(t, db, "Picnic", model.EventStatusPublished)

	if _, err := as.Upsert(e.ID, u.ID, "attending"); err == nil {
		t.Fatal("expected CHECK constraint error")
	}
}

func TestAttendanceUnknownEvent(t *testing.T) {
	db := openTestDB(t)
	as := NewAttendanceStore(db)
	u := mustCreateUser(t, NewUserStore(db), "alice@example.com", "Alice", model.RoleUser)

	if _, err := as.Upsert(404, u.ID, model.AttendanceConfirmed); err == nil {
		t.Fatal("expected foreign key error for unknown event")
	}
}

func TestAttendanceListAndCount(t *testing.T) {
	db := openTestDB(t)
	as := NewAttendanceStore(db)
	us := NewUserStore(db)
	e := mustCreateEvent(t, db, "Picnic", model.EventStatusPublished)

	a := mustCreateUser(t, us, "a@example.com", "A", model.RoleUser)
	b := mustCreateUser(t, us, "b@example.com", "B", model.RoleUser)
	c := mustCreateUser(t, us, "c@example.com", "C", model.RoleUser)
	as.Upsert(e.ID, a.ID, model.AttendanceConfirmed)
	as.Upsert(e.ID, b.ID, model.AttendanceConfirmed)
	as.Upsert(e.ID, c.ID, model.AttendanceDeclined)

	list, err := as.ListByEvent(e.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d, want 3", len(list))
	}
	if list[0].UserID != a.ID {
		t.Errorf("first rsvp user = %d, want %d", list[0].UserID, a.ID)
	}

	counts, err := as.CountByStatus(e.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[model.AttendanceConfirmed] != 2 {
		t.Errorf("confirmed = %d, want 2", counts[model.AttendanceConfirmed])
	}
	if counts[model.AttendanceMaybe] != 0 {
		t.Errorf("maybe = %d, want 0", counts[model.AttendanceMaybe])
	}
	if counts[model.AttendanceDeclined] != 1 {
		t.Errorf("declined = %d, want 1", counts[model.AttendanceDeclined])
	}
}

func TestItemsFollowAttendance(t *testing.T) {
	db := openTestDB(t)
	as := NewAttendanceStore(db)
	is := NewItemStore(db)
	u := mustCreateUser(t, NewUserStore(db), "alice@example.com", "Alice", model.RoleUser)
	e := mustCreateEvent(t, db, "Picnic", model.EventStatusPublished)

	att, err := as.Upsert(e.ID, u.ID, model.AttendanceConfirmed)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if _, err := is.Create(att.ID, "Lemonade", 2); err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := is.Create(att.ID, "Cups", 0); err == nil {
		t.Error("expected CHECK constraint error for zero quantity")
	}

	items, err := is.ListByEvent(e.ID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Lemonade" || items[0].Quantity != 2 {
		t.Fatalf("items = %+v, want one Lemonade x2", items)
	}

	if err := as.Delete(att.ID); err != nil {
		t.Fatalf("delete attendance: %v", err)
	}
	items, err = is.ListByEvent(e.ID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected items to cascade with attendance, got %d", len(items))
	}
}
