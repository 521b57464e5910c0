package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/fellowship/internal/service"
	"github.com/dukerupert/fellowship/internal/toast"
)

type PreferenceHandler struct {
	prefs *service.PreferenceService
	responder
}

func NewPreferenceHandler(prefs *service.PreferenceService, toasts *toast.Notifier, logger *slog.Logger) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs, responder: responder{toasts: toasts, logger: logger}}
}

// List handles GET /api/preferences
func (h *PreferenceHandler) List(w http.ResponseWriter, r *http.Request) {
	m, err := h.prefs.All(actor(r))
	if err != nil {
		h.fail(w, r, err, "load preferences")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type preferenceRequest struct {
	Value string `json:"value"`
}

// Set handles PUT /api/preferences/{key}. An empty value clears the key.
func (h *PreferenceHandler) Set(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	var req preferenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.prefs.Set(actor(r), key, req.Value); err != nil {
		h.fail(w, r, err, "save preference")
		return
	}
	m, err := h.prefs.All(actor(r))
	if err != nil {
		h.fail(w, r, err, "load preferences")
		return
	}
	writeJSON(w, http.StatusOK, m)
}
