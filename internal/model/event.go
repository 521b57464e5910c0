package model

import "time"

const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
)

type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Status      string    `json:"status"`
	Location    string    `json:"location"`
	CreatedBy   *int64    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

const (
	AttendanceConfirmed = "confirmed"
	AttendanceMaybe     = "maybe"
	AttendanceDeclined  = "declined"
)

type EventAttendance struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"eventId"`
	UserID    int64     `json:"userId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ValidAttendanceStatus reports whether s is an accepted RSVP status.
func ValidAttendanceStatus(s string) bool {
	switch s {
	case AttendanceConfirmed, AttendanceMaybe, AttendanceDeclined:
		return true
	}
	return false
}

type EventItem struct {
	ID           int64     `json:"id"`
	AttendanceID int64     `json:"attendanceId"`
	Name         string    `json:"name"`
	Quantity     int       `json:"quantity"`
	CreatedAt    time.Time `json:"createdAt"`
}

type EventMessage struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"eventId"`
	UserID    int64     `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
