// Package bible is a read-only client for the Bible text API.
package bible

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("bible API not configured")

// ErrNotFound is returned for unknown versions or references.
var ErrNotFound = errors.New("passage not found")

type Config struct {
	BaseURL  string
	APIKey   string
	CacheTTL time.Duration
}

type Version struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Language     string `json:"language"`
}

type Passage struct {
	ID        string `json:"id"`
	Version   string `json:"version"`
	Reference string `json:"reference"`
	Content   string `json:"content"`
	Copyright string `json:"copyright,omitempty"`
}

type cacheEntry struct {
	passage   Passage
	fetchedAt time.Time
}

// Client fetches passages and caches them for CacheTTL. Bible text does not
// change, so the TTL mainly bounds memory.
type Client struct {
	config Config
	client *http.Client

	mu       sync.RWMutex
	passages map[string]cacheEntry
	versions []Version
	versAt   time.Time
	now      func() time.Time
}

func NewClient(cfg Config) *Client {
	return &Client{
		config:   cfg,
		client:   &http.Client{Timeout: 10 * time.Second},
		passages: make(map[string]cacheEntry),
		now:      time.Now,
	}
}

func (c *Client) Configured() bool {
	return c.config.APIKey != ""
}

// NormalizeReference turns a human reference such as "John 3:16" into the
// API's passage id form ("JHN.3.16") when it already uses book ids, and
// otherwise passes it through trimmed.
func NormalizeReference(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.ReplaceAll(ref, " ", ".")
	ref = strings.ReplaceAll(ref, ":", ".")
	return strings.ToUpper(ref)
}

// Passage returns the text of reference in version.
func (c *Client) Passage(ctx context.Context, version, reference string) (Passage, error) {
	if !c.Configured() {
		return Passage{}, ErrNotConfigured
	}
	ref := NormalizeReference(reference)
	if version == "" || ref == "" {
		return Passage{}, fmt.Errorf("version and reference are required")
	}
	key := version + "|" + ref

	c.mu.RLock()
	e, ok := c.passages[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.fetchedAt) < c.config.CacheTTL {
		return e.passage, nil
	}

	var resp struct {
		Data struct {
			ID        string `json:"id"`
			Reference string `json:"reference"`
			Content   string `json:"content"`
			Copyright string `json:"copyright"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/bibles/%s/passages/%s", url.PathEscape(version), url.PathEscape(ref))
	q := url.Values{"content-type": {"text"}, "include-titles": {"false"}}
	if err := c.get(ctx, path, q, &resp); err != nil {
		return Passage{}, err
	}

	p := Passage{
		ID:        resp.Data.ID,
		Version:   version,
		Reference: resp.Data.Reference,
		Content:   strings.TrimSpace(resp.Data.Content),
		Copyright: resp.Data.Copyright,
	}

	c.mu.Lock()
	c.passages[key] = cacheEntry{passage: p, fetchedAt: c.now()}
	c.mu.Unlock()
	return p, nil
}

// Versions lists the Bible versions available to the API key.
func (c *Client) Versions(ctx context.Context) ([]Version, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	c.mu.RLock()
	if c.versions != nil && c.now().Sub(c.versAt) < c.config.CacheTTL {
		v := c.versions
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	var resp struct {
		Data []struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			Abbreviation string `json:"abbreviation"`
			Language     struct {
				Name string `json:"name"`
			} `json:"language"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/bibles", nil, &resp); err != nil {
		return nil, err
	}

	versions := make([]Version, 0, len(resp.Data))
	for _, d := range resp.Data {
		versions = append(versions, Version{
			ID:           d.ID,
			Name:         d.Name,
			Abbreviation: d.Abbreviation,
			Language:     d.Language.Name,
		})
	}

	c.mu.Lock()
	c.versions = versions
	c.versAt = c.now()
	c.mu.Unlock()
	return versions, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := strings.TrimRight(c.config.BaseURL, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create bible request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("bible API request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("bible API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode bible response: %w", err)
	}
	return nil
}
