package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/dukerupert/fellowship/internal/auth"
	"github.com/dukerupert/fellowship/internal/toast"
)

//go:embed templates/*.html
var templateFS embed.FS

var shell = template.Must(template.ParseFS(templateFS, "templates/shell.html"))

// Page describes one browser route. The JSON API does the work; pages only
// boot the client with who is signed in and any pending flash message.
type Page struct {
	Name        string
	Path        string
	Title       string
	Requirement auth.Requirement
}

// Pages lists every browser route with the access it requires.
var Pages = []Page{
	{Name: "home", Path: "/{$}", Title: "Home", Requirement: auth.RequireNone},
	{Name: "login", Path: "/login", Title: "Sign in", Requirement: auth.RequireNone},
	{Name: "register", Path: "/register", Title: "Create account", Requirement: auth.RequireNone},
	{Name: "events", Path: "/events", Title: "Events", Requirement: auth.RequireAuthenticated},
	{Name: "event", Path: "/events/{id}", Title: "Event", Requirement: auth.RequireAuthenticated},
	{Name: "bible", Path: "/bible", Title: "Bible", Requirement: auth.RequireAuthenticated},
	{Name: "questions", Path: "/questions", Title: "Questions", Requirement: auth.RequireAuthenticated},
	{Name: "playlist", Path: "/playlist", Title: "Playlist", Requirement: auth.RequireAuthenticated},
	{Name: "notifications", Path: "/notifications", Title: "Notifications", Requirement: auth.RequireAuthenticated},
	{Name: "profile", Path: "/profile", Title: "Profile", Requirement: auth.RequireAuthenticated},
	{Name: "leader", Path: "/leader", Title: "Leader dashboard", Requirement: auth.RequireLeader},
	{Name: "admin", Path: "/admin", Title: "Administration", Requirement: auth.RequireAdmin},
}

type pageData struct {
	Name   string
	Title  string
	UserID int64
	Role   string
	Flash  *toast.Toast
}

type PageHandler struct {
	logger *slog.Logger
}

func NewPageHandler(logger *slog.Logger) *PageHandler {
	return &PageHandler{logger: logger}
}

// Render returns the handler for p.
func (h *PageHandler) Render(p Page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := pageData{Name: p.Name, Title: p.Title}
		if ac, ok := auth.FromContext(r.Context()); ok {
			data.UserID = ac.UserID
			data.Role = ac.Role
		}
		if t, ok := toast.PopFlash(w, r); ok {
			data.Flash = &t
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := shell.Execute(w, data); err != nil {
			h.logger.Error("render page", "page", p.Name, "error", err)
		}
	}
}

// Health handles GET /healthz
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
