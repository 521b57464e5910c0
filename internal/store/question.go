package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/fellowship/internal/model"
)

type QuestionStore struct {
	db *sql.DB
}

func NewQuestionStore(db *sql.DB) *QuestionStore {
	return &QuestionStore{db: db}
}

func scanQuestion(scanner interface{ Scan(...any) error }) (*model.Question, error) {
	var q model.Question
	var answer sql.NullString
	var answeredBy sql.NullInt64
	var answeredAt sql.NullTime

	err := scanner.Scan(&q.ID, &q.Content, &q.UserID, &q.Status, &answer, &answeredBy, &answeredAt, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	if answer.Valid {
		q.Answer = &answer.String
	}
	if answeredBy.Valid {
		q.AnsweredBy = &answeredBy.Int64
	}
	if answeredAt.Valid {
		q.AnsweredAt = &answeredAt.Time
	}
	return &q, nil
}

const questionCols = `id, content, user_id, status, answer, answered_by, answered_at, created_at`

func (s *QuestionStore) Create(userID int64, content string) (*model.Question, error) {
	result, err := s.db.Exec(
		`INSERT INTO questions (content, user_id) VALUES (?, ?)`,
		content, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *QuestionStore) GetByID(id int64) (*model.Question, error) {
	row := s.db.QueryRow(`SELECT `+questionCols+` FROM questions WHERE id = ?`, id)
	q, err := scanQuestion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

// List returns questions newest first. A zero userID lists everyone's;
// an empty status lists every status.
func (s *QuestionStore) List(userID int64, status string) ([]model.Question, error) {
	query := `SELECT ` + questionCols + ` FROM questions WHERE 1=1`
	var args []any
	if userID != 0 {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// Answer stores an answer and marks the question answered.
func (s *QuestionStore) Answer(id, answeredBy int64, answer string) (*model.Question, error) {
	_, err := s.db.Exec(
		`UPDATE questions SET answer = ?, answered_by = ?, answered_at = ?, status = ? WHERE id = ?`,
		answer, answeredBy, time.Now().UTC(), model.QuestionAnswered, id,
	)
	if err != nil {
		return nil, fmt.Errorf("answer question: %w", err)
	}
	return s.GetByID(id)
}

func (s *QuestionStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}
