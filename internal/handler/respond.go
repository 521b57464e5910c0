package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/fellowship/internal/auth"
	"github.com/dukerupert/fellowship/internal/middleware"
	"github.com/dukerupert/fellowship/internal/service"
	"github.com/dukerupert/fellowship/internal/toast"
)

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// responder turns service errors into HTTP responses and mirrors failures
// to the user as a destructive toast.
type responder struct {
	toasts *toast.Notifier
	logger *slog.Logger
}

func (rs responder) fail(w http.ResponseWriter, r *http.Request, err error, action string) {
	status, msg := http.StatusInternalServerError, "failed to "+action
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		status, msg = http.StatusBadRequest, ve.Error()
	case errors.Is(err, service.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrForbidden):
		status, msg = http.StatusForbidden, "you do not have permission to do that"
	case errors.Is(err, service.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrUnavailable):
		status, msg = http.StatusServiceUnavailable, action+" is not available"
	default:
		rs.logger.Error(action, "error", err, "request_id", middleware.RequestID(r.Context()))
	}

	if uid := auth.UserID(r.Context()); uid != 0 && rs.toasts != nil {
		rs.toasts.Notify(uid, toast.Error("Error", msg))
	}
	writeError(w, status, msg)
}

func (rs responder) success(r *http.Request, title, description string) {
	if uid := auth.UserID(r.Context()); uid != 0 && rs.toasts != nil {
		rs.toasts.Notify(uid, toast.Success(title, description))
	}
}

func actor(r *http.Request) auth.AuthContext {
	ac, _ := auth.FromContext(r.Context())
	return ac
}
