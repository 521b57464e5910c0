package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/fellowship/internal/auth"
	"github.com/dukerupert/fellowship/internal/model"
	"github.com/dukerupert/fellowship/internal/store"
)

type QuestionView struct {
	ID             int64      `json:"id"`
	Content        string     `json:"content"`
	UserID         int64      `json:"userId"`
	AskedBy        string     `json:"askedBy"`
	Status         string     `json:"status"`
	Answer         *string    `json:"answer"`
	AnsweredBy     *int64     `json:"answeredBy"`
	AnsweredByName string     `json:"answeredByName,omitempty"`
	AnsweredAt     *time.Time `json:"answeredAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type QuestionService struct {
	questions     *store.QuestionStore
	users         *store.UserStore
	notifications *NotificationService
	mailer        Mailer
	logger        *slog.Logger
}

// NewQuestionService creates the service. mailer may be nil.
func NewQuestionService(db *sql.DB, notifications *NotificationService, mailer Mailer, logger *slog.Logger) *QuestionService {
	return &QuestionService{
		questions:     store.NewQuestionStore(db),
		users:         store.NewUserStore(db),
		notifications: notifications,
		mailer:        mailer,
		logger:        logger,
	}
}

func (s *QuestionService) Ask(actor auth.AuthContext, content string) (*QuestionView, error) {
	if content == "" {
		return nil, invalid("content", "is required")
	}
	q, err := s.questions.Create(actor.UserID, content)
	if err != nil {
		return nil, err
	}
	views, err := s.views([]model.Question{*q})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// List returns the actor's questions. Leaders may pass all to see everyone's.
func (s *QuestionService) List(actor auth.AuthContext, all bool, status string) ([]QuestionView, error) {
	if status != "" && status != model.QuestionPending && status != model.QuestionAnswered {
		return nil, invalid("status", "must be pending or answered")
	}
	userID := actor.UserID
	if all {
		if err := requireLeader(actor); err != nil {
			return nil, err
		}
		userID = 0
	}
	qs, err := s.questions.List(userID, status)
	if err != nil {
		return nil, err
	}
	return s.views(qs)
}

func (s *QuestionService) Get(actor auth.AuthContext, id int64) (*QuestionView, error) {
	q, err := s.questions.GetByID(id)
	if err != nil {
		return nil, err
	}
	if q == nil || (q.UserID != actor.UserID && !auth.Satisfies(actor.Role, model.RoleLeader)) {
		return nil, ErrNotFound
	}
	views, err := s.views([]model.Question{*q})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Answer records a leader's answer and tells the asker by notification and,
// when configured, email.
func (s *QuestionService) Answer(ctx context.Context, actor auth.AuthContext, id int64, answer string) (*QuestionView, error) {
	if err := requireLeader(actor); err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, invalid("answer", "is required")
	}
	q, err := s.questions.GetByID(id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, ErrNotFound
	}

	q, err = s.questions.Answer(id, actor.UserID, answer)
	if err != nil {
		return nil, err
	}

	if s.notifications != nil {
		if _, err := s.notifications.Notify(ctx, q.UserID, "Your question was answered", excerpt(q.Content, 80), fmt.Sprintf("/questions/%d", q.ID)); err != nil {
			s.logger.Error("notify question answered", "question_id", q.ID, "error", err)
		}
	}
	if s.mailer != nil && s.mailer.Configured() {
		asker, err := s.users.GetByID(q.UserID)
		if err == nil && asker != nil {
			if err := s.mailer.SendQuestionAnswered(ctx, asker.Email, asker.DisplayName, q.Content, answer, q.ID); err != nil {
				s.logger.Warn("email question answered", "question_id", q.ID, "error", err)
			}
		}
	}

	s.logger.Info("question answered", "question_id", q.ID, "user_id", actor.UserID)
	views, err := s.views([]model.Question{*q})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Delete removes a question. Askers may delete their own pending questions;
// leaders may delete any.
func (s *QuestionService) Delete(actor auth.AuthContext, id int64) error {
	q, err := s.questions.GetByID(id)
	if err != nil {
		return err
	}
	if q == nil {
		return ErrNotFound
	}
	leader := auth.Satisfies(actor.Role, model.RoleLeader)
	if !leader && (q.UserID != actor.UserID || q.Status != model.QuestionPending) {
		return ErrForbidden
	}
	return s.questions.Delete(id)
}

func (s *QuestionService) views(qs []model.Question) ([]QuestionView, error) {
	ids := make([]int64, 0, len(qs)*2)
	for _, q := range qs {
		ids = append(ids, q.UserID)
		if q.AnsweredBy != nil {
			ids = append(ids, *q.AnsweredBy)
		}
	}
	names, err := loadNames(s.users, ids)
	if err != nil {
		return nil, err
	}

	views := make([]QuestionView, 0, len(qs))
	for _, q := range qs {
		v := QuestionView{
			ID:         q.ID,
			Content:    q.Content,
			UserID:     q.UserID,
			AskedBy:    names.name(q.UserID),
			Status:     q.Status,
			Answer:     q.Answer,
			AnsweredBy: q.AnsweredBy,
			AnsweredAt: q.AnsweredAt,
			CreatedAt:  q.CreatedAt,
		}
		if q.AnsweredBy != nil {
			v.AnsweredByName = names.name(*q.AnsweredBy)
		}
		views = append(views, v)
	}
	return views, nil
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
