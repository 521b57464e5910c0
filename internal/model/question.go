package model

import "time"

const (
	QuestionPending  = "pending"
	QuestionAnswered = "answered"
)

type Question struct {
	ID         int64      `json:"id"`
	Content    string     `json:"content"`
	UserID     int64      `json:"userId"`
	Status     string     `json:"status"`
	Answer     *string    `json:"answer"`
	AnsweredBy *int64     `json:"answeredBy"`
	AnsweredAt *time.Time `json:"answeredAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}
