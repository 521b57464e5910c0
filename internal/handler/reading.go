package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/fellowship/internal/service"
	"github.com/dukerupert/fellowship/internal/toast"
)

type ReadingHandler struct {
	bible     *service.BibleService
	playlists *service.PlaylistService
	responder
}

func NewReadingHandler(bible *service.BibleService, playlists *service.PlaylistService, toasts *toast.Notifier, logger *slog.Logger) *ReadingHandler {
	return &ReadingHandler{bible: bible, playlists: playlists, responder: responder{toasts: toasts, logger: logger}}
}

// Passage handles GET /api/bible/passage?reference=JHN.3.16&version=
func (h *ReadingHandler) Passage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := h.bible.Passage(r.Context(), actor(r), q.Get("version"), q.Get("reference"))
	if err != nil {
		h.fail(w, r, err, "load passage")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Versions handles GET /api/bible/versions
func (h *ReadingHandler) Versions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.bible.Versions(r.Context())
	if err != nil {
		h.fail(w, r, err, "load Bible versions")
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// Playlist handles GET /api/playlist and GET /api/playlists/{id}
func (h *ReadingHandler) Playlist(w http.ResponseWriter, r *http.Request) {
	p, err := h.playlists.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "load playlist")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
