package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/fellowship/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func scanEvent(scanner interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	var createdBy sql.NullInt64
	err := scanner.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Status, &e.Location, &createdBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if createdBy.Valid {
		e.CreatedBy = &createdBy.Int64
	}
	return &e, nil
}

const eventCols = `id, title, description, date, status, location, created_by, created_at, updated_at`

// EventFilter narrows List. Zero values mean no constraint.
type EventFilter struct {
	Status string
	From   time.Time
	To     time.Time
}

func (s *EventStore) Create(title, description string, date time.Time, status, location string, createdBy *int64) (*model.Event, error) {
	var cb sql.NullInt64
	if createdBy != nil {
		cb = sql.NullInt64{Int64: *createdBy, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO events (title, description, date, status, location, created_by) VALUES (?, ?, ?, ?, ?, ?)`,
		title, description, date.UTC(), status, location, cb,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) GetByID(id int64) (*model.Event, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// List returns events matching f ordered by date ascending.
func (s *EventStore) List(f EventFilter) ([]model.Event, error) {
	query := `SELECT ` + eventCols + ` FROM events WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if !f.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		query += ` AND date < ?`
		args = append(args, f.To.UTC())
	}
	query += ` ORDER BY date ASC, id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *EventStore) Update(id int64, title, description string, date time.Time, location string) (*model.Event, error) {
	_, err := s.db.Exec(
		`UPDATE events SET title = ?, description = ?, date = ?, location = ? WHERE id = ?`,
		title, description, date.UTC(), location, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) SetStatus(id int64, status string) (*model.Event, error) {
	_, err := s.db.Exec(`UPDATE events SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return nil, fmt.Errorf("set event status: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
