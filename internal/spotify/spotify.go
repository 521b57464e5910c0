// Package spotify reads public playlists from the Spotify Web API using the
// client-credentials flow.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultAPIURL   = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
)

var ErrNotConfigured = errors.New("spotify not configured")

type Config struct {
	ClientID     string
	ClientSecret string
	APIURL       string
	TokenURL     string
}

type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	DurationMs int      `json:"durationMs"`
	URL        string   `json:"url"`
}

type Playlist struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	URL         string  `json:"url"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Tracks      []Track `json:"tracks"`
}

type Client struct {
	http   *http.Client
	apiURL string
}

// NewClient returns a client whose requests carry an app token that is
// fetched and refreshed by oauth2. It returns ErrNotConfigured without
// credentials.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	hc := cc.Client(context.Background())
	hc.Timeout = 10 * time.Second
	return &Client{http: hc, apiURL: strings.TrimRight(cfg.APIURL, "/")}, nil
}

type apiPlaylist struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	Tracks apiTrackPage `json:"tracks"`
}

type apiTrackPage struct {
	Items []struct {
		Track *struct {
			ID         string `json:"id"`
			Name       string `json:"name"`
			DurationMs int    `json:"duration_ms"`
			Album      struct {
				Name string `json:"name"`
			} `json:"album"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
		} `json:"track"`
	} `json:"items"`
	Next string `json:"next"`
}

// Playlist fetches a playlist with all of its tracks, following pagination.
func (c *Client) Playlist(ctx context.Context, id string) (*Playlist, error) {
	var raw apiPlaylist
	if err := c.get(ctx, c.apiURL+"/playlists/"+url.PathEscape(id), &raw); err != nil {
		return nil, err
	}

	p := &Playlist{
		ID:          raw.ID,
		Name:        raw.Name,
		Description: raw.Description,
		URL:         raw.ExternalURLs.Spotify,
		Tracks:      []Track{},
	}
	if len(raw.Images) > 0 {
		p.ImageURL = raw.Images[0].URL
	}

	page := raw.Tracks
	for {
		for _, it := range page.Items {
			if it.Track == nil {
				continue
			}
			t := Track{
				ID:         it.Track.ID,
				Name:       it.Track.Name,
				Album:      it.Track.Album.Name,
				DurationMs: it.Track.DurationMs,
				URL:        it.Track.ExternalURLs.Spotify,
			}
			for _, a := range it.Track.Artists {
				t.Artists = append(t.Artists, a.Name)
			}
			p.Tracks = append(p.Tracks, t)
		}
		if page.Next == "" {
			break
		}
		next := page.Next
		page = apiTrackPage{}
		if err := c.get(ctx, next, &page); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (c *Client) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create spotify request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("spotify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("spotify returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode spotify response: %w", err)
	}
	return nil
}
