package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/fellowship/internal/model"
)

type ItemStore struct {
	db *sql.DB
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

func scanItem(scanner interface{ Scan(...any) error }) (*model.EventItem, error) {
	var it model.EventItem
	err := scanner.Scan(&it.ID, &it.AttendanceID, &it.Name, &it.Quantity, &it.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

const itemCols = `id, attendance_id, name, quantity, created_at`

func (s *ItemStore) Create(attendanceID int64, name string, quantity int) (*model.EventItem, error) {
	result, err := s.db.Exec(
		`INSERT INTO event_items (attendance_id, name, quantity) VALUES (?, ?, ?)`,
		attendanceID, name, quantity,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ItemStore) GetByID(id int64) (*model.EventItem, error) {
	row := s.db.QueryRow(`SELECT `+itemCols+` FROM event_items WHERE id = ?`, id)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event item: %w", err)
	}
	return it, nil
}

// ListByEvent returns every item brought to an event across all attendances.
func (s *ItemStore) ListByEvent(eventID int64) ([]model.EventItem, error) {
	rows, err := s.db.Query(
		`SELECT i.id, i.attendance_id, i.name, i.quantity, i.created_at
		 FROM event_items i
		 JOIN event_attendances a ON a.id = i.attendance_id
		 WHERE a.event_id = ?
		 ORDER BY i.created_at ASC, i.id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list event items: %w", err)
	}
	defer rows.Close()

	var items []model.EventItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (s *ItemStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM event_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event item: %w", err)
	}
	return nil
}
