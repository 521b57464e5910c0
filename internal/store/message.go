package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/fellowship/internal/model"
)

type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

func scanMessage(scanner interface{ Scan(...any) error }) (*model.EventMessage, error) {
	var m model.EventMessage
	err := scanner.Scan(&m.ID, &m.EventID, &m.UserID, &m.Content, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const messageCols = `id, event_id, user_id, content, created_at`

func (s *MessageStore) Create(eventID, userID int64, content string) (*model.EventMessage, error) {
	result, err := s.db.Exec(
		`INSERT INTO event_messages (event_id, user_id, content) VALUES (?, ?, ?)`,
		eventID, userID, content,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *MessageStore) GetByID(id int64) (*model.EventMessage, error) {
	row := s.db.QueryRow(`SELECT `+messageCols+` FROM event_messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event message: %w", err)
	}
	return m, nil
}

// ListByEvent returns an event's chat in arrival order. When afterID is
// non-zero only messages newer than it are returned.
func (s *MessageStore) ListByEvent(eventID, afterID int64) ([]model.EventMessage, error) {
	rows, err := s.db.Query(
		`SELECT `+messageCols+` FROM event_messages WHERE event_id = ? AND id > ? ORDER BY id ASC`,
		eventID, afterID,
	)
	if err != nil {
		return nil, fmt.Errorf("list event messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.EventMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

func (s *MessageStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM event_messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event message: %w", err)
	}
	return nil
}
