package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dukerupert/fellowship/internal/database"
	"github.com/dukerupert/fellowship/internal/store"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// Public key should be base64url-encoded, 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	// Private key should be base64url-encoded, 32 bytes P-256 scalar
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

// browserKeys returns p256dh and auth values like a browser subscription would.
func browserKeys(t *testing.T) (string, string) {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	secret := make([]byte, 16)
	rand.Read(secret)
	return base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		base64.RawURLEncoding.EncodeToString(secret)
}

func setup(t *testing.T) (*Service, *store.PushStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`INSERT INTO users (email, display_name, password_hash, role) VALUES ('a@example.com', 'A', 'x', 'user')`); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("vapid: %v", err)
	}
	ps := store.NewPushStore(db)
	svc := NewService(Config{VAPIDPublicKey: pub, VAPIDPrivateKey: priv, Subscriber: "mailto:admin@example.com"}, ps, slog.Default())
	return svc, ps
}

func TestNotifyUser(t *testing.T) {
	svc, ps := setup(t)

	var hits atomic.Int32
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Content-Encoding") != "aes128gcm" {
			t.Errorf("unexpected content encoding %q", r.Header.Get("Content-Encoding"))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer ok.Close()
	gone := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer gone.Close()

	p1, a1 := browserKeys(t)
	p2, a2 := browserKeys(t)
	if _, err := ps.CreateSubscription(1, ok.URL+"/sub", p1, a1); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if _, err := ps.CreateSubscription(1, gone.URL+"/sub", p2, a2); err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	var results []string
	svc.OnResult = func(r string) { results = append(results, r) }

	sent, err := svc.NotifyUser(context.Background(), 1, Payload{Title: "Your question was answered", Body: "See the answer", URL: "/questions/1"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if hits.Load() != 1 {
		t.Errorf("push endpoint hits = %d, want 1", hits.Load())
	}
	if len(results) != 2 {
		t.Errorf("results = %v", results)
	}

	subs, err := ps.ListByUser(1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Errorf("expected expired subscription removed, have %d", len(subs))
	}
}

func TestNotifyUserDisabled(t *testing.T) {
	svc := NewService(Config{}, nil, slog.Default())
	sent, err := svc.NotifyUser(context.Background(), 1, Payload{Title: "x"})
	if err != nil || sent != 0 {
		t.Errorf("expected no-op, got %d %v", sent, err)
	}
}
