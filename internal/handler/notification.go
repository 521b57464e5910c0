package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/fellowship/internal/service"
	"github.com/dukerupert/fellowship/internal/toast"
)

type NotificationHandler struct {
	notifications *service.NotificationService
	responder
}

func NewNotificationHandler(ns *service.NotificationService, toasts *toast.Notifier, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: ns, responder: responder{toasts: toasts, logger: logger}}
}

// List handles GET /api/notifications?unread=true
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.notifications.List(actor(r), r.URL.Query().Get("unread") == "true")
	if err != nil {
		h.fail(w, r, err, "load notifications")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.notifications.MarkRead(actor(r), id); err != nil {
		h.fail(w, r, err, "mark notification read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.MarkAllRead(actor(r))
	if err != nil {
		h.fail(w, r, err, "mark notifications read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
