package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/fellowship/internal/auth"
	"github.com/dukerupert/fellowship/internal/model"
	"github.com/dukerupert/fellowship/internal/store"
	"github.com/dukerupert/fellowship/internal/websocket"
)

// EventView is an event as shown to a particular user.
type EventView struct {
	ID            int64          `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Date          time.Time      `json:"date"`
	Status        string         `json:"status"`
	Location      string         `json:"location"`
	CreatedBy     *int64         `json:"createdBy"`
	CreatedByName string         `json:"createdByName,omitempty"`
	Counts        map[string]int `json:"counts"`
	MyStatus      string         `json:"myStatus,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

type EventService struct {
	events        *store.EventStore
	attendances   *store.AttendanceStore
	items         *store.ItemStore
	users         *store.UserStore
	notifications *NotificationService
	hub           Publisher
	logger        *slog.Logger

	// listUsers is the audience for publish notifications.
	listUsers func() ([]model.User, error)
}

func NewEventService(db *sql.DB, notifications *NotificationService, hub Publisher, logger *slog.Logger) *EventService {
	if hub == nil {
		hub = nopPublisher{}
	}
	users := store.NewUserStore(db)
	return &EventService{
		events:        store.NewEventStore(db),
		attendances:   store.NewAttendanceStore(db),
		items:         store.NewItemStore(db),
		users:         users,
		notifications: notifications,
		hub:           hub,
		logger:        logger,
		listUsers:     users.List,
	}
}

// visible reports whether a user holding role may see e. Drafts are for
// leaders and admins only.
func visible(e *model.Event, role string) bool {
	return e.Status == model.EventStatusPublished || auth.Satisfies(role, model.RoleLeader)
}

// Visible is used to authorize chat subscriptions.
func (s *EventService) Visible(eventID int64, role string) (bool, error) {
	e, err := s.events.GetByID(eventID)
	if err != nil {
		return false, err
	}
	return e != nil && visible(e, role), nil
}

// load returns the event if the actor may see it.
func (s *EventService) load(actor auth.AuthContext, id int64) (*model.Event, error) {
	e, err := s.events.GetByID(id)
	if err != nil {
		return nil, err
	}
	if e == nil || !visible(e, actor.Role) {
		return nil, ErrNotFound
	}
	return e, nil
}

func requireLeader(actor auth.AuthContext) error {
	if !auth.Satisfies(actor.Role, model.RoleLeader) {
		return ErrForbidden
	}
	return nil
}

type EventQuery struct {
	Status   string
	Upcoming bool
	Now      time.Time
}

// List returns the events visible to actor. Non-leaders only see published events.
func (s *EventService) List(actor auth.AuthContext, q EventQuery) ([]EventView, error) {
	f := store.EventFilter{Status: q.Status}
	if !auth.Satisfies(actor.Role, model.RoleLeader) {
		if q.Status == model.EventStatusDraft {
			return []EventView{}, nil
		}
		f.Status = model.EventStatusPublished
	}
	if q.Upcoming {
		now := q.Now
		if now.IsZero() {
			now = time.Now()
		}
		f.From = now.Add(-24 * time.Hour)
	}

	events, err := s.events.List(f)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(events))
	for _, e := range events {
		if e.CreatedBy != nil {
			ids = append(ids, *e.CreatedBy)
		}
	}
	names, err := loadNames(s.users, ids)
	if err != nil {
		return nil, err
	}

	views := make([]EventView, 0, len(events))
	for i := range events {
		v, err := s.view(actor, &events[i], names)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

func (s *EventService) Get(actor auth.AuthContext, id int64) (*EventView, error) {
	e, err := s.load(actor, id)
	if err != nil {
		return nil, err
	}
	var ids []int64
	if e.CreatedBy != nil {
		ids = append(ids, *e.CreatedBy)
	}
	names, err := loadNames(s.users, ids)
	if err != nil {
		return nil, err
	}
	return s.view(actor, e, names)
}

func (s *EventService) view(actor auth.AuthContext, e *model.Event, names nameTable) (*EventView, error) {
	counts, err := s.attendances.CountByStatus(e.ID)
	if err != nil {
		return nil, err
	}
	v := &EventView{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Date:        e.Date,
		Status:      e.Status,
		Location:    e.Location,
		CreatedBy:   e.CreatedBy,
		Counts:      counts,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.CreatedBy != nil {
		v.CreatedByName = names.name(*e.CreatedBy)
	}
	if actor.UserID != 0 {
		a, err := s.attendances.GetByEventAndUser(e.ID, actor.UserID)
		if err != nil {
			return nil, err
		}
		if a != nil {
			v.MyStatus = a.Status
		}
	}
	return v, nil
}

// Create adds a draft event. Leaders and admins only.
func (s *EventService) Create(actor auth.AuthContext, in EventInput) (*EventView, error) {
	if err := requireLeader(actor); err != nil {
		return nil, err
	}
	createdBy := actor.UserID
	e, err := s.events.Create(in.Title, in.Description, in.Date, model.EventStatusDraft, in.Location, &createdBy)
	if err != nil {
		return nil, err
	}
	s.logger.Info("event created", "event_id", e.ID, "user_id", actor.UserID)
	return s.Get(actor, e.ID)
}

func (s *EventService) Update(actor auth.AuthContext, id int64, in EventInput) (*EventView, error) {
	if err := requireLeader(actor); err != nil {
		return nil, err
	}
	if _, err := s.load(actor, id); err != nil {
		return nil, err
	}
	if _, err := s.events.Update(id, in.Title, in.Description, in.Date, in.Location); err != nil {
		return nil, err
	}
	v, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}
	if v.Status == model.EventStatusPublished {
		s.hub.Broadcast(websocket.NewMessage("event", "updated", id, nil))
	}
	return v, nil
}

// Publish makes a draft visible to everyone and notifies every other user.
func (s *EventService) Publish(ctx context.Context, actor auth.AuthContext, id int64) (*EventView, error) {
	if err := requireLeader(actor); err != nil {
		return nil, err
	}
	e, err := s.load(actor, id)
	if err != nil {
		return nil, err
	}
	if e.Status == model.EventStatusPublished {
		return nil, fmt.Errorf("event %d already published: %w", id, ErrConflict)
	}
	if _, err := s.events.SetStatus(id, model.EventStatusPublished); err != nil {
		return nil, err
	}

	s.hub.Broadcast(websocket.NewMessage("event", "published", id, map[string]any{"title": e.Title}))

	s.notifyPublished(ctx, e, actor.UserID)
	s.logger.Info("event published", "event_id", id, "user_id", actor.UserID)
	return s.Get(actor, id)
}

// notifyPublished tells every user except the publisher about e. The event
// is already live, so failures are logged rather than returned.
func (s *EventService) notifyPublished(ctx context.Context, e *model.Event, publisherID int64) {
	if s.notifications == nil {
		return
	}
	users, err := s.listUsers()
	if err != nil {
		s.logger.Error("list users for publish notification", "event_id", e.ID, "error", err)
		return
	}
	body := fmt.Sprintf("%s on %s", e.Title, e.Date.Format("Mon Jan 2"))
	for _, u := range users {
		if u.ID == publisherID {
			continue
		}
		if _, err := s.notifications.Notify(ctx, u.ID, "New event", body, fmt.Sprintf("/events/%d", e.ID)); err != nil {
			s.logger.Error("notify event published", "event_id", e.ID, "user_id", u.ID, "error", err)
		}
	}
}

// Unpublish returns an event to draft.
func (s *EventService) Unpublish(actor auth.AuthContext, id int64) (*EventView, error) {
	if err := requireLeader(actor); err != nil {
		return nil, err
	}
	if _, err := s.load(actor, id); err != nil {
		return nil, err
	}
	if _, err := s.events.SetStatus(id, model.EventStatusDraft); err != nil {
		return nil, err
	}
	s.hub.Broadcast(websocket.NewMessage("event", "unpublished", id, nil))
	return s.Get(actor, id)
}

func (s *EventService) Delete(actor auth.AuthContext, id int64) error {
	if err := requireLeader(actor); err != nil {
		return err
	}
	if _, err := s.load(actor, id); err != nil {
		return err
	}
	if err := s.events.Delete(id); err != nil {
		return err
	}
	s.hub.Broadcast(websocket.NewMessage("event", "deleted", id, nil))
	s.logger.Info("event deleted", "event_id", id, "user_id", actor.UserID)
	return nil
}
