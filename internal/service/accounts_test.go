package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/fellowship/internal/auth"
	"github.com/dukerupert/fellowship/internal/authstate"
	"github.com/dukerupert/fellowship/internal/model"
	"github.com/dukerupert/fellowship/internal/store"
)

func newAccounts(t *testing.T) (*fixture, *AccountService, *[]authstate.Event) {
	t.Helper()
	f := newFixture(t)
	var events []authstate.Event
	f.broker.Subscribe(func(ev authstate.Event) { events = append(events, ev) })
	svc := NewAccountService(f.db, store.NewSessionStore(f.db, time.Hour), f.broker, f.logger)
	return f, svc, &events
}

func TestRegisterFirstUserIsAdmin(t *testing.T) {
	_, svc, events := newAccounts(t)

	first, sess, err := svc.Register(RegisterInput{Email: " Admin@Example.com ", DisplayName: "Admin", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, first.Role)
	assert.Equal(t, "admin@example.com", first.Email)
	assert.NotEmpty(t, sess.Token)

	second, _, err := svc.Register(RegisterInput{Email: "user@example.com", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, second.Role)

	require.Len(t, *events, 2)
	assert.Equal(t, authstate.KindLogin, (*events)[0].Kind)
}

func TestRegisterValidation(t *testing.T) {
	_, svc, _ := newAccounts(t)

	_, _, err := svc.Register(RegisterInput{Email: "not-an-email", Password: "password1"})
	assert.True(t, IsValidation(err))
	_, _, err = svc.Register(RegisterInput{Email: "a@example.com", Password: "short"})
	assert.True(t, IsValidation(err))

	_, _, err = svc.Register(RegisterInput{Email: "a@example.com", Password: "password1"})
	require.NoError(t, err)
	_, _, err = svc.Register(RegisterInput{Email: "A@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLogin(t *testing.T) {
	_, svc, _ := newAccounts(t)
	_, _, err := svc.Register(RegisterInput{Email: "a@example.com", Password: "password1"})
	require.NoError(t, err)

	u, sess, err := svc.Login("A@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, sess.UserID)

	_, _, err = svc.Login("a@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login("nobody@example.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutPublishes(t *testing.T) {
	_, svc, events := newAccounts(t)
	u, sess, err := svc.Register(RegisterInput{Email: "a@example.com", Password: "password1"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(auth.AuthContext{UserID: u.ID, Role: u.Role, SessionID: sess.ID}))
	last := (*events)[len(*events)-1]
	assert.Equal(t, authstate.KindLogout, last.Kind)
	assert.Equal(t, u.ID, last.UserID)
}

func TestSetRole(t *testing.T) {
	f, svc, events := newAccounts(t)
	admin := f.user(t, "admin@example.com", "Admin", model.RoleAdmin)
	member := f.user(t, "m@example.com", "M", model.RoleUser)

	cache := auth.NewRoleCache(svc.RoleOf, 0)
	f.broker.Subscribe(cache.HandleAuthState)
	role, err := cache.Get(member.UserID)
	require.NoError(t, err)
	require.Equal(t, model.RoleUser, role)

	_, err = svc.SetRole(member, admin.UserID, model.RoleUser)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.SetRole(admin, admin.UserID, model.RoleUser)
	assert.True(t, IsValidation(err))
	_, err = svc.SetRole(admin, member.UserID, "owner")
	assert.True(t, IsValidation(err))
	_, err = svc.SetRole(admin, 999, model.RoleLeader)
	assert.ErrorIs(t, err, ErrNotFound)

	u, err := svc.SetRole(admin, member.UserID, model.RoleLeader)
	require.NoError(t, err)
	assert.Equal(t, model.RoleLeader, u.Role)

	last := (*events)[len(*events)-1]
	assert.Equal(t, authstate.KindRoleChanged, last.Kind)
	assert.Equal(t, member.UserID, last.UserID)

	role, err = cache.Get(member.UserID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleLeader, role)
}

func TestListUsersAdminOnly(t *testing.T) {
	f, svc, _ := newAccounts(t)
	admin := f.user(t, "admin@example.com", "Admin", model.RoleAdmin)
	leader := f.user(t, "lead@example.com", "Lead", model.RoleLeader)

	_, err := svc.ListUsers(leader)
	assert.ErrorIs(t, err, ErrForbidden)

	users, err := svc.ListUsers(admin)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestRegisterConcurrentFirstUsersYieldOneAdmin(t *testing.T) {
	_, svc, _ := newAccounts(t)

	const n = 6
	roles := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, _, err := svc.Register(RegisterInput{Email: fmt.Sprintf("u%d@example.com", i), Password: "password1"})
			if assert.NoError(t, err) {
				roles <- u.Role
			}
		}(i)
	}
	wg.Wait()
	close(roles)

	admins := 0
	for r := range roles {
		if r == model.RoleAdmin {
			admins++
		}
	}
	assert.Equal(t, 1, admins)
}

func TestRegisterConcurrentDuplicateEmailConflicts(t *testing.T) {
	_, svc, _ := newAccounts(t)

	const n = 6
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Register(RegisterInput{Email: "same@example.com", Password: "password1"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.Equal(t, 1, ok)
}
