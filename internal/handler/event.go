package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/fellowship/internal/service"
	"github.com/dukerupert/fellowship/internal/toast"
)

type EventHandler struct {
	events *service.EventService
	chat   *service.ChatService
	responder
}

func NewEventHandler(events *service.EventService, chat *service.ChatService, toasts *toast.Notifier, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: events, chat: chat, responder: responder{toasts: toasts, logger: logger}}
}

// List handles GET /api/events?status=&upcoming=true
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := service.EventQuery{
		Status:   r.URL.Query().Get("status"),
		Upcoming: r.URL.Query().Get("upcoming") == "true",
		Now:      time.Now(),
	}
	events, err := h.events.List(actor(r), q)
	if err != nil {
		h.fail(w, r, err, "load events")
		return
	}
	if events == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// Get handles GET /api/events/{id}
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	ev, err := h.events.Get(actor(r), id)
	if err != nil {
		h.fail(w, r, err, "load event")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// Create handles POST /api/events. New events start as drafts.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := service.DecodeEventInput(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, err, "create event")
		return
	}
	ev, err := h.events.Create(actor(r), in)
	if err != nil {
		h.fail(w, r, err, "create event")
		return
	}
	h.success(r, "Event created", ev.Title)
	writeJSON(w, http.StatusCreated, ev)
}

// Update handles PUT /api/events/{id}
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	in, err := service.DecodeEventInput(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, err, "update event")
		return
	}
	ev, err := h.events.Update(actor(r), id, in)
	if err != nil {
		h.fail(w, r, err, "update event")
		return
	}
	h.success(r, "Event updated", ev.Title)
	writeJSON(w, http.StatusOK, ev)
}

// Delete handles DELETE /api/events/{id}
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.events.Delete(actor(r), id); err != nil {
		h.fail(w, r, err, "delete event")
		return
	}
	h.success(r, "Event deleted", "")
	w.WriteHeader(http.StatusNoContent)
}

// Publish handles POST /api/events/{id}/publish
func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	ev, err := h.events.Publish(r.Context(), actor(r), id)
	if err != nil {
		h.fail(w, r, err, "publish event")
		return
	}
	h.success(r, "Event published", ev.Title)
	writeJSON(w, http.StatusOK, ev)
}

// Unpublish handles POST /api/events/{id}/unpublish
func (h *EventHandler) Unpublish(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	ev, err := h.events.Unpublish(actor(r), id)
	if err != nil {
		h.fail(w, r, err, "unpublish event")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// Attendees handles GET /api/events/{id}/attendees
func (h *EventHandler) Attendees(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	list, err := h.events.Attendees(actor(r), id)
	if err != nil {
		h.fail(w, r, err, "load attendees")
		return
	}
	if list == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type rsvpRequest struct {
	Status string `json:"status"`
}

// RSVP handles PUT /api/events/{id}/rsvp
func (h *EventHandler) RSVP(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req rsvpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	a, err := h.events.RSVP(actor(r), id, req.Status)
	if err != nil {
		h.fail(w, r, err, "update attendance")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Withdraw handles DELETE /api/events/{id}/rsvp
func (h *EventHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.events.Withdraw(actor(r), id); err != nil {
		h.fail(w, r, err, "withdraw attendance")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type itemRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// AddItem handles POST /api/events/{id}/items
func (h *EventHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	item, err := h.events.AddItem(actor(r), id, req.Name, req.Quantity)
	if err != nil {
		h.fail(w, r, err, "add item")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// DeleteItem handles DELETE /api/items/{id}
func (h *EventHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.events.DeleteItem(actor(r), id); err != nil {
		h.fail(w, r, err, "remove item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Messages handles GET /api/events/{id}/messages?after=
func (h *EventHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var after int64
	if s := r.URL.Query().Get("after"); s != "" {
		after, err = strconv.ParseInt(s, 10, 64)
		if err != nil || after < 0 {
			writeError(w, http.StatusBadRequest, "invalid after")
			return
		}
	}
	msgs, err := h.chat.List(actor(r), id, after)
	if err != nil {
		h.fail(w, r, err, "load messages")
		return
	}
	if msgs == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// PostMessage handles POST /api/events/{id}/messages
func (h *EventHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	content, err := service.DecodeContent(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, err, "send message")
		return
	}
	msg, err := h.chat.Post(actor(r), id, content)
	if err != nil {
		h.fail(w, r, err, "send message")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// DeleteMessage handles DELETE /api/messages/{id}
func (h *EventHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.chat.Delete(actor(r), id); err != nil {
		h.fail(w, r, err, "delete message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
