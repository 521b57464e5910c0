package model

// Preference keys a user may store.
const (
	PrefBibleVersion     = "preferredBibleVersion"
	PrefWarningDismissed = "supabase-warning-dismissed"
)

// ValidPreferenceKey reports whether key may be stored.
func ValidPreferenceKey(key string) bool {
	switch key {
	case PrefBibleVersion, PrefWarningDismissed:
		return true
	}
	return false
}
