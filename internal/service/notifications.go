package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukerupert/fellowship/internal/auth"
	"github.com/dukerupert/fellowship/internal/model"
	"github.com/dukerupert/fellowship/internal/push"
	"github.com/dukerupert/fellowship/internal/store"
	"github.com/dukerupert/fellowship/internal/websocket"
)

type NotificationService struct {
	notifications *store.NotificationStore
	hub           Publisher
	push          Pusher
	logger        *slog.Logger
}

// NewNotificationService creates the service. hub and pusher may be nil.
func NewNotificationService(ns *store.NotificationStore, hub Publisher, pusher Pusher, logger *slog.Logger) *NotificationService {
	if hub == nil {
		hub = nopPublisher{}
	}
	return &NotificationService{notifications: ns, hub: hub, push: pusher, logger: logger}
}

// Notify stores a notification for userID and delivers it over the user's
// websocket connections and, when configured, web push. Delivery failures
// are logged, not returned.
func (s *NotificationService) Notify(ctx context.Context, userID int64, title, body, link string) (*model.Notification, error) {
	n, err := s.notifications.Create(userID, title, body, link)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	msg := websocket.NewMessage("notification", "created", n.ID, nil)
	msg.Payload = n
	s.hub.SendToUser(userID, msg)

	if s.push != nil {
		if _, err := s.push.NotifyUser(ctx, userID, push.Payload{Title: title, Body: body, URL: link, Tag: fmt.Sprintf("notification-%d", n.ID)}); err != nil {
			s.logger.Warn("push notification", "user_id", userID, "error", err)
		}
	}
	return n, nil
}

type NotificationList struct {
	Notifications []model.Notification `json:"notifications"`
	Unread        int                  `json:"unread"`
}

func (s *NotificationService) List(actor auth.AuthContext, unreadOnly bool) (*NotificationList, error) {
	list, err := s.notifications.ListByUser(actor.UserID, unreadOnly)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Notification{}
	}
	unread, err := s.notifications.CountUnread(actor.UserID)
	if err != nil {
		return nil, err
	}
	return &NotificationList{Notifications: list, Unread: unread}, nil
}

func (s *NotificationService) MarkRead(actor auth.AuthContext, id int64) error {
	ok, err := s.notifications.MarkRead(id, actor.UserID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	// Already read is fine; someone else's or missing is not.
	n, err := s.notifications.GetByID(id)
	if err != nil {
		return err
	}
	if n == nil || n.UserID != actor.UserID {
		return ErrNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllRead(actor auth.AuthContext) (int64, error) {
	return s.notifications.MarkAllRead(actor.UserID)
}
