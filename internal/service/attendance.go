package service

import (
	"strings"
	"time"

	"github.com/dukerupert/fellowship/internal/auth"
	"github.com/dukerupert/fellowship/internal/model"
	"github.com/dukerupert/fellowship/internal/websocket"
)

type ItemView struct {
	ID           int64  `json:"id"`
	AttendanceID int64  `json:"attendanceId"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
}

type AttendeeView struct {
	ID          int64      `json:"id"`
	EventID     int64      `json:"eventId"`
	UserID      int64      `json:"userId"`
	DisplayName string     `json:"displayName"`
	Status      string     `json:"status"`
	Items       []ItemView `json:"items"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Attendees lists an event's RSVPs with display names and brought items.
func (s *EventService) Attendees(actor auth.AuthContext, eventID int64) ([]AttendeeView, error) {
	if _, err := s.load(actor, eventID); err != nil {
		return nil, err
	}
	list, err := s.attendances.ListByEvent(eventID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.ListByEvent(eventID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.UserID)
	}
	names, err := loadNames(s.users, ids)
	if err != nil {
		return nil, err
	}

	byAttendance := make(map[int64][]ItemView)
	for _, it := range items {
		byAttendance[it.AttendanceID] = append(byAttendance[it.AttendanceID], ItemView{
			ID:           it.ID,
			AttendanceID: it.AttendanceID,
			Name:         it.Name,
			Quantity:     it.Quantity,
		})
	}

	views := make([]AttendeeView, 0, len(list))
	for _, a := range list {
		its := byAttendance[a.ID]
		if its == nil {
			its = []ItemView{}
		}
		views = append(views, AttendeeView{
			ID:          a.ID,
			EventID:     a.EventID,
			UserID:      a.UserID,
			DisplayName: names.name(a.UserID),
			Status:      a.Status,
			Items:       its,
			UpdatedAt:   a.UpdatedAt,
		})
	}
	return views, nil
}

// RSVP records the actor's attendance status for a published event.
func (s *EventService) RSVP(actor auth.AuthContext, eventID int64, status string) (*model.EventAttendance, error) {
	if !model.ValidAttendanceStatus(status) {
		return nil, invalid("status", "must be confirmed, maybe or declined")
	}
	e, err := s.load(actor, eventID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.EventStatusPublished {
		return nil, invalid("event", "is not open for RSVPs")
	}
	a, err := s.attendances.Upsert(eventID, actor.UserID, status)
	if err != nil {
		return nil, err
	}
	s.hub.Publish(websocket.EventTopic(eventID), websocket.NewMessage("event_attendance", "updated", a.ID, map[string]any{
		"userId": actor.UserID,
		"status": status,
	}))
	return a, nil
}

// Withdraw removes the actor's RSVP along with any items they were bringing.
func (s *EventService) Withdraw(actor auth.AuthContext, eventID int64) error {
	if _, err := s.load(actor, eventID); err != nil {
		return err
	}
	a, err := s.attendances.GetByEventAndUser(eventID, actor.UserID)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrNotFound
	}
	if err := s.attendances.Delete(a.ID); err != nil {
		return err
	}
	s.hub.Publish(websocket.EventTopic(eventID), websocket.NewMessage("event_attendance", "deleted", a.ID, map[string]any{
		"userId": actor.UserID,
	}))
	return nil
}

// AddItem records something the actor is bringing. The actor must have
// RSVPed and not declined.
func (s *EventService) AddItem(actor auth.AuthContext, eventID int64, name string, quantity int) (*ItemView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return nil, invalid("quantity", "must be at least 1")
	}
	if _, err := s.load(actor, eventID); err != nil {
		return nil, err
	}
	a, err := s.attendances.GetByEventAndUser(eventID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if a == nil || a.Status == model.AttendanceDeclined {
		return nil, invalid("attendance", "RSVP before adding items")
	}

	it, err := s.items.Create(a.ID, name, quantity)
	if err != nil {
		return nil, err
	}
	v := &ItemView{ID: it.ID, AttendanceID: it.AttendanceID, Name: it.Name, Quantity: it.Quantity}
	msg := websocket.NewMessage("event_item", "created", it.ID, nil)
	msg.Payload = v
	s.hub.Publish(websocket.EventTopic(eventID), msg)
	return v, nil
}

// DeleteItem removes an item. Owners and leaders may delete.
func (s *EventService) DeleteItem(actor auth.AuthContext, itemID int64) error {
	it, err := s.items.GetByID(itemID)
	if err != nil {
		return err
	}
	if it == nil {
		return ErrNotFound
	}
	a, err := s.attendances.GetByID(it.AttendanceID)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrNotFound
	}
	if a.UserID != actor.UserID && !auth.Satisfies(actor.Role, model.RoleLeader) {
		return ErrForbidden
	}
	if err := s.items.Delete(itemID); err != nil {
		return err
	}
	s.hub.Publish(websocket.EventTopic(a.EventID), websocket.NewMessage("event_item", "deleted", itemID, nil))
	return nil
}
