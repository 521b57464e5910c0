package service

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/fellowship/internal/auth"
	"github.com/dukerupert/fellowship/internal/authstate"
	"github.com/dukerupert/fellowship/internal/model"
	"github.com/dukerupert/fellowship/internal/store"
)

const minPasswordLength = 8

// ErrInvalidCredentials is returned for an unknown email or wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// AccountService handles registration, login, logout and role changes, and
// publishes the resulting auth state changes.
type AccountService struct {
	users    *store.UserStore
	sessions *store.SessionStore
	broker   *authstate.Broker
	logger   *slog.Logger
}

func NewAccountService(db *sql.DB, sessions *store.SessionStore, broker *authstate.Broker, logger *slog.Logger) *AccountService {
	return &AccountService{
		users:    store.NewUserStore(db),
		sessions: sessions,
		broker:   broker,
		logger:   logger,
	}
}

type RegisterInput struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

// Register creates a user and a session. The first user becomes admin.
func (s *AccountService) Register(in RegisterInput) (*model.User, *model.Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, invalid("email", "is not a valid address")
	}
	if len(in.Password) < minPasswordLength {
		return nil, nil, invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	name := strings.TrimSpace(in.DisplayName)

	existing, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("email already registered: %w", ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.Register(email, name, string(hash), model.RoleAdmin, model.RoleUser)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, nil, fmt.Errorf("email already registered: %w", ErrConflict)
	}
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user registered", "user_id", u.ID, "role", u.Role)

	sess, err := s.startSession(u)
	if err != nil {
		return nil, nil, err
	}
	return u, sess, nil
}

// Login checks credentials and starts a session.
func (s *AccountService) Login(email, password string) (*model.User, *model.Session, error) {
	u, err := s.users.GetByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, nil, err
	}
	if u == nil {
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	sess, err := s.startSession(u)
	if err != nil {
		return nil, nil, err
	}
	return u, sess, nil
}

func (s *AccountService) startSession(u *model.User) (*model.Session, error) {
	sess, err := s.sessions.Create(u.ID)
	if err != nil {
		return nil, err
	}
	s.broker.Publish(authstate.Event{UserID: u.ID, Kind: authstate.KindLogin, Role: u.Role})
	return sess, nil
}

// Logout ends one session.
func (s *AccountService) Logout(actor auth.AuthContext) error {
	if err := s.sessions.Delete(actor.SessionID); err != nil {
		return err
	}
	s.broker.Publish(authstate.Event{UserID: actor.UserID, Kind: authstate.KindLogout})
	return nil
}

// Me returns the actor's user record.
func (s *AccountService) Me(actor auth.AuthContext) (*model.User, error) {
	u, err := s.users.GetByID(actor.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *AccountService) UpdateDisplayName(actor auth.AuthContext, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("displayName", "is required")
	}
	return s.users.UpdateDisplayName(actor.UserID, name)
}

// ListUsers returns every user. Admins only.
func (s *AccountService) ListUsers(actor auth.AuthContext) ([]model.User, error) {
	if !auth.Satisfies(actor.Role, model.RoleAdmin) {
		return nil, ErrForbidden
	}
	users, err := s.users.List()
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// SetRole changes a user's role. Admins only, and not on themselves, so an
// admin cannot lock everyone out.
func (s *AccountService) SetRole(actor auth.AuthContext, userID int64, role string) (*model.User, error) {
	if !auth.Satisfies(actor.Role, model.RoleAdmin) {
		return nil, ErrForbidden
	}
	if userID == actor.UserID {
		return nil, invalid("userId", "cannot change your own role")
	}
	return s.ChangeRole(userID, role)
}

// ChangeRole sets a role without an access check. Used by the CLI.
func (s *AccountService) ChangeRole(userID int64, role string) (*model.User, error) {
	if !model.ValidRole(role) {
		return nil, invalid("role", "must be admin, leader or user")
	}
	u, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	if u.Role == role {
		return u, nil
	}
	u, err = s.users.SetRole(userID, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("role changed", "user_id", userID, "role", role)
	s.broker.Publish(authstate.Event{UserID: userID, Kind: authstate.KindRoleChanged, Role: role})
	return u, nil
}

// RoleOf looks up a user's current role; "" if the user is gone.
func (s *AccountService) RoleOf(userID int64) (string, error) {
	return s.users.GetRole(userID)
}
