package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/domain"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/store"
	"github.com/aussiebroadwan/mathquiz/pkg/idx"
	"github.com/aussiebroadwan/mathquiz/pkg/slogx"
)

var (
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUnknownRole        = errors.New("unknown role")
	ErrRoleNotHeld        = errors.New("role not held")
	ErrInvalidUsername    = errors.New("invalid username")
)

// PasswordHasher is satisfied by *cryptox.Hasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) error
}

type AccountService struct {
	Store  store.Store
	Hasher PasswordHasher

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Register creates a non-admin account. The user row and its "user" role
// assignment are written in one transaction.
func (s *AccountService) Register(ctx context.Context, username, password string) error {
	return s.create(ctx, username, password, domain.RoleUser)
}

func (s *AccountService) create(ctx context.Context, username, password string, roles ...string) error {
	l := slogx.FromContext(ctx)

	if username == "" {
		return ErrInvalidUsername
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrDuplicateUser
			}
			return err
		}
		for _, name := range roles {
			role, err := tx.Roles().GetRoleByName(ctx, name)
			if err != nil {
				return fmt.Errorf("role %q: %w", name, err)
			}
			if err := tx.Roles().AssignRole(ctx, user.ID, role.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrDuplicateUser) {
			l.Error("failed to register user", slog.String("username", username), slog.Any("error", err))
		}
		return err
	}

	l.Info("user registered", slog.String("username", username), slog.String("user_id", user.ID))
	return nil
}

// Authenticate checks the password and stamps last_login on success.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}

	if err := s.Hasher.Verify(password, user.PasswordHash); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}

	at := s.now()
	if err := s.Store.Users().TouchLastLogin(ctx, user.ID, at); err != nil {
		return domain.User{}, fmt.Errorf("touch last login: %w", err)
	}
	user.LastLogin = &at
	return user, nil
}

// GetUser returns the account for username, ErrUserNotFound if there is none.
func (s *AccountService) GetUser(ctx context.Context, username string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

// DeleteUser removes the account together with its roles and stats.
func (s *AccountService) DeleteUser(ctx context.Context, username string) error {
	err := s.Store.Users().DeleteUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

func (s *AccountService) IsAdmin(ctx context.Context, username string) (bool, error) {
	return s.HasRole(ctx, username, domain.RoleAdmin)
}

func (s *AccountService) HasRole(ctx context.Context, username, role string) (bool, error) {
	return s.Store.Roles().HasRole(ctx, username, role)
}

// GrantRole assigns role to username; granting a held role is a no-op.
func (s *AccountService) GrantRole(ctx context.Context, username, role string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, r, err := lookupUserRole(ctx, tx, username, role)
		if err != nil {
			return err
		}
		return tx.Roles().AssignRole(ctx, user.ID, r.ID)
	})
}

// RevokeRole removes role from username, ErrRoleNotHeld if it was not held.
func (s *AccountService) RevokeRole(ctx context.Context, username, role string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, r, err := lookupUserRole(ctx, tx, username, role)
		if err != nil {
			return err
		}
		if err := tx.Roles().RevokeRole(ctx, user.ID, r.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRoleNotHeld
			}
			return err
		}
		return nil
	})
}

func lookupUserRole(ctx context.Context, tx store.Tx, username, role string) (domain.User, domain.Role, error) {
	user, err := tx.Users().GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, domain.Role{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, domain.Role{}, err
	}

	r, err := tx.Roles().GetRoleByName(ctx, role)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, domain.Role{}, ErrUnknownRole
	}
	if err != nil {
		return domain.User{}, domain.Role{}, err
	}
	return user, r, nil
}

// ListUsers returns every account with its roles, ordered by username.
func (s *AccountService) ListUsers(ctx context.Context) ([]domain.UserWithRoles, error) {
	return s.Store.Users().ListUsersWithRoles(ctx)
}
