package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/fellowship/internal/model"
)

type AttendanceStore struct {
	db *sql.DB
}

func NewAttendanceStore(db *sql.DB) *AttendanceStore {
	return &AttendanceStore{db: db}
}

func scanAttendance(scanner interface{ Scan(...any) error }) (*model.EventAttendance, error) {
	var a model.EventAttendance
	err := scanner.Scan(&a.ID, &a.EventID, &a.UserID, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const attendanceCols = `id, event_id, user_id, status, created_at, updated_at`

// Upsert records the user's RSVP for an event, replacing any previous status.
func (s *AttendanceStore) Upsert(eventID, userID int64, status string) (*model.EventAttendance, error) {
	_, err := s.db.Exec(
		`INSERT INTO event_attendances (event_id, user_id, status) VALUES (?, ?, ?)
		 ON CONFLICT(event_id, user_id) DO UPDATE SET status = excluded.status`,
		eventID, userID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return s.GetByEventAndUser(eventID, userID)
}

func (s *AttendanceStore) GetByID(id int64) (*model.EventAttendance, error) {
	row := s.db.QueryRow(`SELECT `+attendanceCols+` FROM event_attendances WHERE id = ?`, id)
	a, err := scanAttendance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	return a, nil
}

func (s *AttendanceStore) GetByEventAndUser(eventID, userID int64) (*model.EventAttendance, error) {
	row := s.db.QueryRow(
		`SELECT `+attendanceCols+` FROM event_attendances WHERE event_id = ? AND user_id = ?`,
		eventID, userID,
	)
	a, err := scanAttendance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance by event and user: %w", err)
	}
	return a, nil
}

// ListByEvent returns attendances for an event, oldest RSVP first.
func (s *AttendanceStore) ListByEvent(eventID int64) ([]model.EventAttendance, error) {
	rows, err := s.db.Query(
		`SELECT `+attendanceCols+` FROM event_attendances WHERE event_id = ? ORDER BY created_at ASC, id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attendances: %w", err)
	}
	defer rows.Close()

	var list []model.EventAttendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// CountByStatus returns RSVP counts keyed by status for an event.
func (s *AttendanceStore) CountByStatus(eventID int64) (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT status, COUNT(*) FROM event_attendances WHERE event_id = ? GROUP BY status`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("count attendances: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{
		model.AttendanceConfirmed: 0,
		model.AttendanceMaybe:     0,
		model.AttendanceDeclined:  0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan attendance count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *AttendanceStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM event_attendances WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	return nil
}
