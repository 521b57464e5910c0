package toast

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookie = "flash"

// SetFlash stores t in a one-shot cookie, read back by the next request
// after a redirect.
func SetFlash(w http.ResponseWriter, t Toast, secure bool) {
	data, err := json.Marshal(t)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   60,
	})
}

// PopFlash returns the pending flash toast, if any, and clears the cookie.
func PopFlash(w http.ResponseWriter, r *http.Request) (Toast, bool) {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return Toast{}, false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	data, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return Toast{}, false
	}
	var t Toast
	if err := json.Unmarshal(data, &t); err != nil || t.Title == "" {
		return Toast{}, false
	}
	return t, true
}
