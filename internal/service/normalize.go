package service

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Older clients send the same field under different names. Inbound payloads
// are decoded once here into a single schema.
var (
	titleKeys   = []string{"title", "name"}
	contentKeys = []string{"content", "message", "text"}
)

// firstString returns the first non-empty string among keys.
func firstString(raw map[string]json.RawMessage, keys ...string) (string, error) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || string(v) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", invalid(k, "must be a string")
		}
		if s = strings.TrimSpace(s); s != "" {
			return s, nil
		}
	}
	return "", nil
}

func decodeRaw(r io.Reader) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, invalid("", "invalid JSON body")
	}
	if raw == nil {
		return nil, invalid("", "invalid JSON body")
	}
	return raw, nil
}

// EventInput is the normalized create/update payload for an event.
type EventInput struct {
	Title       string
	Description string
	Date        time.Time
	Location    string
}

// DecodeEventInput reads an event payload accepting "title" or "name".
func DecodeEventInput(r io.Reader) (EventInput, error) {
	raw, err := decodeRaw(r)
	if err != nil {
		return EventInput{}, err
	}
	var in EventInput
	if in.Title, err = firstString(raw, titleKeys...); err != nil {
		return in, err
	}
	if in.Description, err = firstString(raw, "description"); err != nil {
		return in, err
	}
	if in.Location, err = firstString(raw, "location"); err != nil {
		return in, err
	}
	date, err := firstString(raw, "date")
	if err != nil {
		return in, err
	}
	if in.Title == "" {
		return in, invalid("title", "is required")
	}
	if date == "" {
		return in, invalid("date", "is required")
	}
	if in.Date, err = ParseDate(date); err != nil {
		return in, err
	}
	return in, nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"}

// ParseDate accepts RFC 3339 timestamps, datetime-local values and plain dates.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalid("date", fmt.Sprintf("%q is not a valid date", s))
}

// DecodeContent reads a text payload accepting "content", "message" or "text".
func DecodeContent(r io.Reader) (string, error) {
	raw, err := decodeRaw(r)
	if err != nil {
		return "", err
	}
	s, err := firstString(raw, contentKeys...)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", invalid("content", "is required")
	}
	return s, nil
}
