package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/fellowship/internal/auth"
	"github.com/dukerupert/fellowship/internal/middleware"
	"github.com/dukerupert/fellowship/internal/model"
	"github.com/dukerupert/fellowship/internal/service"
	"github.com/dukerupert/fellowship/internal/toast"
)

type AuthHandler struct {
	accounts   *service.AccountService
	sessionTTL time.Duration
	secure     bool
	responder
}

func NewAuthHandler(accounts *service.AccountService, sessionTTL time.Duration, secure bool, toasts *toast.Notifier, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts:   accounts,
		sessionTTL: sessionTTL,
		secure:     secure,
		responder:  responder{toasts: toasts, logger: logger},
	}
}

type sessionResponse struct {
	User     *model.User `json:"user"`
	Redirect string      `json:"redirect"`
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, u *model.User, sess *model.Session, status int) {
	middleware.SetSessionCookie(w, sess.Token, int(h.sessionTTL.Seconds()), h.secure)
	writeJSON(w, status, sessionResponse{User: u, Redirect: middleware.PopReturnTo(w, r)})
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	u, sess, err := h.accounts.Register(in)
	if err != nil {
		h.fail(w, r, err, "register")
		return
	}
	h.startSession(w, r, u, sess, http.StatusCreated)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login. The response names where the client
// should go next: the path it was bounced from, or home.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	u, sess, err := h.accounts.Login(req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err, "log in")
		return
	}
	h.startSession(w, r, u, sess, http.StatusOK)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.accounts.Logout(ac); err != nil {
			h.logger.Error("logout", "error", err)
		}
	}
	middleware.ClearSessionCookie(w, h.secure)
	w.WriteHeader(http.StatusNoContent)
}

type sessionState struct {
	Authenticated bool         `json:"authenticated"`
	User          *model.User  `json:"user,omitempty"`
	Flash         *toast.Toast `json:"flash,omitempty"`
}

// Session handles GET /api/session: who is signed in, plus any pending
// flash message from a redirect.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	var st sessionState
	if t, ok := toast.PopFlash(w, r); ok {
		st.Flash = &t
	}
	if ac, ok := auth.FromContext(r.Context()); ok {
		u, err := h.accounts.Me(ac)
		if err != nil {
			h.logger.Warn("session user", "user_id", ac.UserID, "error", err)
		} else {
			u.Role = ac.Role
			st.Authenticated = true
			st.User = u
		}
	}
	writeJSON(w, http.StatusOK, st)
}

type profileRequest struct {
	DisplayName string `json:"displayName"`
}

// UpdateProfile handles PATCH /api/me
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	u, err := h.accounts.UpdateDisplayName(actor(r), req.DisplayName)
	if err != nil {
		h.fail(w, r, err, "update profile")
		return
	}
	h.success(r, "Profile updated", "")
	writeJSON(w, http.StatusOK, u)
}

type UserHandler struct {
	accounts *service.AccountService
	responder
}

func NewUserHandler(accounts *service.AccountService, toasts *toast.Notifier, logger *slog.Logger) *UserHandler {
	return &UserHandler{accounts: accounts, responder: responder{toasts: toasts, logger: logger}}
}

// List handles GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.ListUsers(actor(r))
	if err != nil {
		h.fail(w, r, err, "list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type roleRequest struct {
	Role string `json:"role"`
}

// SetRole handles PUT /api/users/{id}/role
func (h *UserHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	u, err := h.accounts.SetRole(actor(r), id, req.Role)
	if err != nil {
		h.fail(w, r, err, "change role")
		return
	}
	h.success(r, "Role updated", u.Email+" is now "+u.Role)
	writeJSON(w, http.StatusOK, u)
}
