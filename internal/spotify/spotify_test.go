package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newFakeSpotify(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "cid" || secret != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
	})
	var base string
	mux.HandleFunc("GET /playlists/abc", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{
			"id":"abc","name":"Worship","description":"Sunday set",
			"external_urls":{"spotify":"https://open.spotify.com/playlist/abc"},
			"images":[{"url":"https://img/1.jpg"}],
			"tracks":{"items":[
				{"track":{"id":"t1","name":"Song One","duration_ms":200000,"album":{"name":"A"},"artists":[{"name":"X"},{"name":"Y"}],"external_urls":{"spotify":"https://open.spotify.com/track/t1"}}},
				{"track":null}
			],"next":"%s/playlists/abc/tracks?offset=2"}
		}`, base)
	})
	mux.HandleFunc("GET /playlists/abc/tracks", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"track":{"id":"t2","name":"Song Two","duration_ms":180000,"album":{"name":"B"},"artists":[{"name":"Z"}]}}],"next":""}`))
	})
	srv := httptest.NewServer(mux)
	base = srv.URL
	return srv
}

func TestPlaylist(t *testing.T) {
	srv := newFakeSpotify(t)
	defer srv.Close()

	c, err := NewClient(Config{ClientID: "cid", ClientSecret: "secret", APIURL: srv.URL, TokenURL: srv.URL + "/token"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	p, err := c.Playlist(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Playlist: %v", err)
	}
	if p.Name != "Worship" || p.ImageURL != "https://img/1.jpg" {
		t.Errorf("unexpected playlist: %+v", p)
	}
	if len(p.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(p.Tracks))
	}
	if p.Tracks[0].Name != "Song One" || len(p.Tracks[0].Artists) != 2 {
		t.Errorf("unexpected first track: %+v", p.Tracks[0])
	}
	if p.Tracks[1].ID != "t2" {
		t.Errorf("expected second page track t2, got %s", p.Tracks[1].ID)
	}
}

func TestPlaylistBadCredentials(t *testing.T) {
	srv := newFakeSpotify(t)
	defer srv.Close()

	c, err := NewClient(Config{ClientID: "cid", ClientSecret: "nope", APIURL: srv.URL, TokenURL: srv.URL + "/token"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Playlist(context.Background(), "abc"); err == nil {
		t.Fatal("expected error with bad credentials")
	}
}

func TestNewClientNotConfigured(t *testing.T) {
	if _, err := NewClient(Config{ClientID: "cid"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}
