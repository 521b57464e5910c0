package service

import (
	"context"
	"errors"

	"github.com/dukerupert/fellowship/internal/auth"
	"github.com/dukerupert/fellowship/internal/bible"
	"github.com/dukerupert/fellowship/internal/model"
	"github.com/dukerupert/fellowship/internal/spotify"
)

// BibleReader is the subset of *bible.Client the reader uses.
type BibleReader interface {
	Configured() bool
	Passage(ctx context.Context, version, reference string) (bible.Passage, error)
	Versions(ctx context.Context) ([]bible.Version, error)
}

type BibleService struct {
	client         BibleReader
	prefs          *PreferenceService
	defaultVersion string
}

func NewBibleService(client BibleReader, prefs *PreferenceService, defaultVersion string) *BibleService {
	return &BibleService{client: client, prefs: prefs, defaultVersion: defaultVersion}
}

// Passage fetches reference. Without an explicit version the user's
// preferred version is used, then the server default.
func (s *BibleService) Passage(ctx context.Context, actor auth.AuthContext, version, reference string) (*bible.Passage, error) {
	if reference == "" {
		return nil, invalid("reference", "is required")
	}
	if !s.client.Configured() {
		return nil, ErrUnavailable
	}
	if version == "" && actor.UserID != 0 {
		v, err := s.prefs.Get(actor.UserID, model.PrefBibleVersion)
		if err != nil {
			return nil, err
		}
		version = v
	}
	if version == "" {
		version = s.defaultVersion
	}

	p, err := s.client.Passage(ctx, version, reference)
	if errors.Is(err, bible.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BibleService) Versions(ctx context.Context) ([]bible.Version, error) {
	if !s.client.Configured() {
		return nil, ErrUnavailable
	}
	return s.client.Versions(ctx)
}

// PlaylistReader is the subset of *spotify.Client the service uses.
type PlaylistReader interface {
	Playlist(ctx context.Context, id string) (*spotify.Playlist, error)
}

type PlaylistService struct {
	client    PlaylistReader
	defaultID string
}

// NewPlaylistService creates the service. A nil client means Spotify is not configured.
func NewPlaylistService(client PlaylistReader, defaultID string) *PlaylistService {
	return &PlaylistService{client: client, defaultID: defaultID}
}

// Get returns playlist id, or the configured playlist when id is empty.
func (s *PlaylistService) Get(ctx context.Context, id string) (*spotify.Playlist, error) {
	if s.client == nil {
		return nil, ErrUnavailable
	}
	if id == "" {
		id = s.defaultID
	}
	if id == "" {
		return nil, invalid("id", "is required")
	}
	return s.client.Playlist(ctx, id)
}
