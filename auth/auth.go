// Package auth registers and authenticates cashier accounts. Credentials
// live in the document store under users/{username}; passwords are stored
// as bcrypt hashes, never in clear.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	errspkg "github.com/ichaaulia/supercart/internal/engine/errors"
	"github.com/ichaaulia/supercart/localstate"
	storepkg "github.com/ichaaulia/supercart/store"
)

const (
	collection = "users"

	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 6

	// RoleCashier is the only role issued at registration.
	RoleCashier = "cashier"
)

var (
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password; callers cannot tell which, deliberately.
	ErrInvalidCredentials = errors.New("supercart: invalid username or password")

	// ErrUserExists is returned when registering a taken username.
	ErrUserExists = errors.New("supercart: username already registered")
)

// User is the stored account document. PasswordHash never leaves this
// package.
type User struct {
	Username     string    `json:"username"`
	EmailPhone   string    `json:"emailPhone"`
	PasswordHash string    `json:"passwordHash"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Service registers and authenticates users, keeping the device-local
// signed-in state in sync.
type Service struct {
	store storepkg.Store
	local *localstate.State
}

// NewService wires a Service. The localstate is optional; without it,
// Login and Logout skip local persistence.
func NewService(st storepkg.Store, local *localstate.State) (*Service, error) {
	if st == nil {
		return nil, errspkg.ErrStoreRequired
	}
	return &Service{store: st, local: local}, nil
}

// Register creates a new cashier account. All fields are required, the
// password must be at least MinPasswordLength characters, and the username
// must be unused.
func (s *Service) Register(ctx context.Context, username, emailPhone, password string) error {
	username = strings.TrimSpace(username)
	emailPhone = strings.TrimSpace(emailPhone)

	if username == "" {
		return errspkg.NewValidationError("username", "must not be empty")
	}
	if emailPhone == "" {
		return errspkg.NewValidationError("email or phone", "must not be empty")
	}
	if len(password) < MinPasswordLength {
		return errspkg.NewValidationError("password",
			fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}

	key := storepkg.Key(collection, username)
	var existing User
	err := s.store.Get(ctx, key, &existing)
	if err == nil {
		return ErrUserExists
	}
	if !errors.Is(err, storepkg.ErrNotFound) {
		return fmt.Errorf("auth: check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}

	user := User{
		Username:     username,
		EmailPhone:   emailPhone,
		PasswordHash: string(hash),
		Role:         RoleCashier,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Set(ctx, key, user); err != nil {
		return fmt.Errorf("auth: save user: %w", err)
	}
	return nil
}

// Login verifies the credentials and persists the signed-in user locally.
// An unknown username and a wrong password are indistinguishable to the
// caller.
func (s *Service) Login(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)

	var user User
	err := s.store.Get(ctx, storepkg.Key(collection, username), &user)
	if errors.Is(err, storepkg.ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("auth: load user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}

	if s.local != nil {
		err := s.local.SetCurrentUser(ctx, localstate.CurrentUser{
			Username:   user.Username,
			EmailPhone: user.EmailPhone,
		})
		if err != nil {
			return User{}, fmt.Errorf("auth: persist session: %w", err)
		}
	}
	return user, nil
}

// Logout clears the device-local signed-in user. Logging out while signed
// out is a no-op.
func (s *Service) Logout(ctx context.Context) error {
	if s.local == nil {
		return nil
	}
	return s.local.ClearCurrentUser(ctx)
}
