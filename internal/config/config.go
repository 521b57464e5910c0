// Package config loads Fellowship configuration from an optional YAML file
// and FELLOWSHIP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration.
type Config struct {
	Port    string `yaml:"port"`
	DBPath  string `yaml:"db_path"`
	BaseURL string `yaml:"base_url"`

	Log     LogConfig     `yaml:"log"`
	Session SessionConfig `yaml:"session"`
	Toast   ToastConfig   `yaml:"toast"`
	Bible   BibleConfig   `yaml:"bible"`
	Spotify SpotifyConfig `yaml:"spotify"`
	Push    PushConfig    `yaml:"push"`
	Email   EmailConfig   `yaml:"email"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

type SessionConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

type ToastConfig struct {
	// DedupeWindow suppresses identical toasts sent to the same user within this duration.
	DedupeWindow time.Duration `yaml:"dedupe_window"`
}

type BibleConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	DefaultVersion string        `yaml:"default_version"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	PlaylistID   string `yaml:"playlist_id"`
}

type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
}

type EmailConfig struct {
	PostmarkToken string `yaml:"postmark_token"`
	FromAddress   string `yaml:"from_address"`
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Port:   "8080",
		DBPath: "fellowship.db",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Session: SessionConfig{
			TTL: 30 * 24 * time.Hour,
		},
		Toast: ToastConfig{
			DedupeWindow: 3 * time.Second,
		},
		Bible: BibleConfig{
			BaseURL:        "https://api.scripture.api.bible/v1",
			DefaultVersion: "de4e12af7f28f599-02",
			CacheTTL:       6 * time.Hour,
		},
		Push: PushConfig{
			Subscriber: "mailto:noreply@fellowship.local",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (if non-empty),
// and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("FELLOWSHIP_PORT", &c.Port)
	str("FELLOWSHIP_DB_PATH", &c.DBPath)
	str("FELLOWSHIP_BASE_URL", &c.BaseURL)
	str("FELLOWSHIP_LOG_LEVEL", &c.Log.Level)
	str("FELLOWSHIP_LOG_FORMAT", &c.Log.Format)
	str("FELLOWSHIP_BIBLE_URL", &c.Bible.BaseURL)
	str("FELLOWSHIP_BIBLE_API_KEY", &c.Bible.APIKey)
	str("FELLOWSHIP_BIBLE_DEFAULT_VERSION", &c.Bible.DefaultVersion)
	str("FELLOWSHIP_SPOTIFY_CLIENT_ID", &c.Spotify.ClientID)
	str("FELLOWSHIP_SPOTIFY_CLIENT_SECRET", &c.Spotify.ClientSecret)
	str("FELLOWSHIP_SPOTIFY_PLAYLIST_ID", &c.Spotify.PlaylistID)
	str("FELLOWSHIP_VAPID_PUBLIC_KEY", &c.Push.VAPIDPublicKey)
	str("FELLOWSHIP_VAPID_PRIVATE_KEY", &c.Push.VAPIDPrivateKey)
	str("FELLOWSHIP_PUSH_SUBSCRIBER", &c.Push.Subscriber)
	str("FELLOWSHIP_POSTMARK_TOKEN", &c.Email.PostmarkToken)
	str("FELLOWSHIP_FROM_EMAIL", &c.Email.FromAddress)

	if err := dur("FELLOWSHIP_SESSION_TTL", &c.Session.TTL); err != nil {
		return err
	}
	if err := dur("FELLOWSHIP_TOAST_WINDOW", &c.Toast.DedupeWindow); err != nil {
		return err
	}
	if err := dur("FELLOWSHIP_BIBLE_CACHE_TTL", &c.Bible.CacheTTL); err != nil {
		return err
	}

	if v, ok := lookup("FELLOWSHIP_SECURE_COOKIE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FELLOWSHIP_SECURE_COOKIE: %w", err)
		}
		c.Session.SecureCookie = b
	}
	return nil
}

// Validate reports configuration that the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	} else if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("port %q is not a number", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if c.Toast.DedupeWindow < 0 {
		errs = append(errs, errors.New("toast.dedupe_window must not be negative"))
	}
	if c.Bible.APIKey != "" && c.Bible.BaseURL == "" {
		errs = append(errs, errors.New("bible.base_url is required when bible.api_key is set"))
	}
	if (c.Spotify.ClientID == "") != (c.Spotify.ClientSecret == "") {
		errs = append(errs, errors.New("spotify.client_id and spotify.client_secret must be set together"))
	}
	if (c.Push.VAPIDPublicKey == "") != (c.Push.VAPIDPrivateKey == "") {
		errs = append(errs, errors.New("push VAPID public and private keys must be set together"))
	}
	if c.Email.PostmarkToken != "" && c.Email.FromAddress == "" {
		errs = append(errs, errors.New("email.from_address is required when email.postmark_token is set"))
	}

	return errors.Join(errs...)
}

// PushEnabled reports whether web push is configured.
func (c *Config) PushEnabled() bool {
	return c.Push.VAPIDPublicKey != "" && c.Push.VAPIDPrivateKey != ""
}

// SpotifyEnabled reports whether the playlist integration is configured.
func (c *Config) SpotifyEnabled() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}
