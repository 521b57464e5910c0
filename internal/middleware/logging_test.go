package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var observed int
	observe := func(method string, status int, d time.Duration) {
		observed = status
	}

	var seenID string
	handler := RequestLogger(logger, observe)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = RequestID(r.Context())
		noteUser(r.Context(), 42)
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/events", nil))

	if _, err := uuid.Parse(seenID); err != nil {
		t.Errorf("request id %q is not a uuid", seenID)
	}
	if rec.Header().Get("X-Request-ID") != seenID {
		t.Error("X-Request-ID should echo the request id")
	}
	if observed != http.StatusTeapot {
		t.Errorf("observed status = %d", observed)
	}
	out := buf.String()
	for _, want := range []string{`"status":418`, `"path":"/api/events"`, `"user_id":42`, `"level":"WARN"`, seenID} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestRequestLoggerKeepsIncomingID(t *testing.T) {
	id := uuid.NewString()
	handler := RequestLogger(slog.Default(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", id)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != id {
		t.Errorf("expected incoming request id to be kept")
	}
}
