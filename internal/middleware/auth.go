package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dukerupert/fellowship/internal/auth"
	"github.com/dukerupert/fellowship/internal/store"
	"github.com/dukerupert/fellowship/internal/toast"
)

const (
	SessionCookieName  = "fellowship_session"
	ReturnToCookieName = "return_to"
)

// Authenticate resolves the session cookie, if any, into an AuthContext.
// It never rejects a request; route gates decide what anonymous users see.
// The role comes from the role cache so changes apply on the next request.
func Authenticate(sessions *store.SessionStore, roles *auth.RoleCache, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := sessions.GetByToken(cookie.Value)
			if err != nil {
				logger.Error("session lookup", "error", err)
			}
			if err != nil || sess == nil {
				next.ServeHTTP(w, r)
				return
			}

			role, err := roles.Get(sess.UserID)
			if err != nil {
				logger.Warn("role lookup", "user_id", sess.UserID, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			noteUser(r.Context(), sess.UserID)
			ctx := auth.WithAuth(r.Context(), auth.AuthContext{
				UserID:    sess.UserID,
				Role:      role,
				SessionID: sess.ID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Gate enforces req using g. Browsers are redirected: to login with the
// return path preserved, or home with a denial flash. API and HTMX callers
// get a status code or HX-Redirect instead.
func Gate(g *auth.Gate, req auth.Requirement, secureCookies bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.RequestURI()
			d := g.Check(r.Context(), req, path)

			switch d.Outcome {
			case auth.Allowed:
				next.ServeHTTP(w, r)
				return
			case auth.Unauthenticated:
				SetReturnTo(w, path, secureCookies)
				if isAPI(r) {
					writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required", "redirect": d.Redirect})
					return
				}
			case auth.Forbidden:
				if isAPI(r) {
					writeJSON(w, http.StatusForbidden, map[string]string{"error": d.Message, "redirect": d.Redirect})
					return
				}
				toast.SetFlash(w, toast.Error("Access denied", d.Message), secureCookies)
			}
			redirect(w, r, d.Redirect)
		})
	}
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") || strings.Contains(r.Header.Get("Accept"), "application/json")
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", to)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// SetSessionCookie stores the session token.
func SetSessionCookie(w http.ResponseWriter, token string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	SetSessionCookie(w, "", -1, secure)
}

// SetReturnTo remembers where to send the user after login. It lives for
// the browser session only.
func SetReturnTo(w http.ResponseWriter, path string, secure bool) {
	if !auth.SafeReturnPath(path) {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ReturnToCookieName,
		Value:    url.QueryEscape(path),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopReturnTo returns the post-login destination and clears it. The
// ?redirect= query parameter wins over the cookie; unsafe paths yield "/".
func PopReturnTo(w http.ResponseWriter, r *http.Request) string {
	dest := r.URL.Query().Get("redirect")
	if c, err := r.Cookie(ReturnToCookieName); err == nil {
		http.SetCookie(w, &http.Cookie{Name: ReturnToCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
		if dest == "" {
			dest, _ = url.QueryUnescape(c.Value)
		}
	}
	if !auth.SafeReturnPath(dest) {
		return auth.HomePath
	}
	return dest
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
