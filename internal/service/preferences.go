package service

import (
	"database/sql"
	"strings"

	"github.com/dukerupert/fellowship/internal/auth"
	"github.com/dukerupert/fellowship/internal/model"
	"github.com/dukerupert/fellowship/internal/store"
)

type PreferenceService struct {
	prefs *store.PreferenceStore
}

func NewPreferenceService(db *sql.DB) *PreferenceService {
	return &PreferenceService{prefs: store.NewPreferenceStore(db)}
}

func (s *PreferenceService) All(actor auth.AuthContext) (map[string]string, error) {
	m, err := s.prefs.GetAll(actor.UserID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

// Set stores one preference. An empty value clears it.
func (s *PreferenceService) Set(actor auth.AuthContext, key, value string) error {
	if !model.ValidPreferenceKey(key) {
		return invalid("key", "is not a known preference")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return s.prefs.Delete(actor.UserID, key)
	}
	if key == model.PrefWarningDismissed && value != "true" && value != "false" {
		return invalid("value", "must be true or false")
	}
	return s.prefs.Set(actor.UserID, key, value)
}

// Get returns a preference value or "".
func (s *PreferenceService) Get(userID int64, key string) (string, error) {
	v, _, err := s.prefs.Get(userID, key)
	return v, err
}
