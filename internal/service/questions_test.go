package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/fellowship/internal/model"
)

type fakeMailer struct {
	to, answer string
	id         int64
}

func (m *fakeMailer) Configured() bool { return true }

func (m *fakeMailer) SendQuestionAnswered(_ context.Context, to, _, _, answer string, id int64) error {
	m.to, m.answer, m.id = to, answer, id
	return nil
}

func TestQuestionAnswerFlow(t *testing.T) {
	f := newFixture(t)
	mailer := &fakeMailer{}
	qs := NewQuestionService(f.db, f.notifications, mailer, f.logger)
	leader := f.user(t, "lead@example.com", "Pastor Sam", model.RoleLeader)
	member := f.user(t, "member@example.com", "Member", model.RoleUser)

	q, err := qs.Ask(member, "What should we read next?")
	require.NoError(t, err)
	assert.Equal(t, model.QuestionPending, q.Status)
	assert.Equal(t, "Member", q.AskedBy)

	_, err = qs.Answer(context.Background(), member, q.ID, "Ruth")
	assert.ErrorIs(t, err, ErrForbidden)

	answered, err := qs.Answer(context.Background(), leader, q.ID, "  Ruth  ")
	require.NoError(t, err)
	assert.Equal(t, model.QuestionAnswered, answered.Status)
	require.NotNil(t, answered.Answer)
	assert.Equal(t, "Ruth", *answered.Answer)
	assert.Equal(t, "Pastor Sam", answered.AnsweredByName)

	assert.Equal(t, "member@example.com", mailer.to)
	assert.Equal(t, q.ID, mailer.id)

	notes, err := f.notifications.List(member, true)
	require.NoError(t, err)
	require.Len(t, notes.Notifications, 1)
	assert.Equal(t, "Your question was answered", notes.Notifications[0].Title)
	assert.Len(t, f.hub.ofType("notification_created"), 1)
}

func TestQuestionListScopes(t *testing.T) {
	f := newFixture(t)
	qs := NewQuestionService(f.db, f.notifications, nil, f.logger)
	leader := f.user(t, "lead@example.com", "Lead", model.RoleLeader)
	a := f.user(t, "a@example.com", "A", model.RoleUser)
	b := f.user(t, "b@example.com", "B", model.RoleUser)

	_, err := qs.Ask(a, "one")
	require.NoError(t, err)
	_, err = qs.Ask(b, "two")
	require.NoError(t, err)

	mine, err := qs.List(a, false, "")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = qs.List(a, true, "")
	assert.ErrorIs(t, err, ErrForbidden)

	all, err := qs.List(leader, true, model.QuestionPending)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = qs.List(leader, true, "bogus")
	assert.True(t, IsValidation(err))
}

func TestQuestionDeleteRules(t *testing.T) {
	f := newFixture(t)
	qs := NewQuestionService(f.db, f.notifications, nil, f.logger)
	leader := f.user(t, "lead@example.com", "Lead", model.RoleLeader)
	a := f.user(t, "a@example.com", "A", model.RoleUser)
	b := f.user(t, "b@example.com", "B", model.RoleUser)

	q1, err := qs.Ask(a, "pending")
	require.NoError(t, err)
	q2, err := qs.Ask(a, "to be answered")
	require.NoError(t, err)
	_, err = qs.Answer(context.Background(), leader, q2.ID, "yes")
	require.NoError(t, err)

	assert.ErrorIs(t, qs.Delete(b, q1.ID), ErrForbidden)
	_, err = qs.Get(b, q1.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, qs.Delete(a, q1.ID))
	assert.ErrorIs(t, qs.Delete(a, q2.ID), ErrForbidden, "answered questions stay")
	assert.NoError(t, qs.Delete(leader, q2.ID))
}

func TestNotificationMarkRead(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "a@example.com", "A", model.RoleUser)
	b := f.user(t, "b@example.com", "B", model.RoleUser)

	n, err := f.notifications.Notify(context.Background(), a.UserID, "Hi", "there", "/")
	require.NoError(t, err)

	assert.ErrorIs(t, f.notifications.MarkRead(b, n.ID), ErrNotFound)
	assert.NoError(t, f.notifications.MarkRead(a, n.ID))
	assert.NoError(t, f.notifications.MarkRead(a, n.ID), "already read is not an error")

	_, err = f.notifications.Notify(context.Background(), a.UserID, "Two", "", "/")
	require.NoError(t, err)
	count, err := f.notifications.MarkAllRead(a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
