package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories so that a Tx can hand out the same repositories
// bound to the transaction.
type Store interface {
	Users() Users
	Roles() Roles
	Problems() Problems
	Stats() Stats

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing if fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists if the username is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// DeleteUserByUsername removes the user; role assignments and stats
	// cascade. Returns ErrNotFound if no such user exists.
	DeleteUserByUsername(ctx context.Context, username string) error

	// TouchLastLogin sets last_login for the user.
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error

	// ListUsersWithRoles returns every user ordered by username.
	ListUsersWithRoles(ctx context.Context) ([]domain.UserWithRoles, error)
}

type Roles interface {
	GetRoleByName(ctx context.Context, name string) (domain.Role, error)

	// AssignRole links a user to a role. Assigning twice is a no-op.
	AssignRole(ctx context.Context, userID string, roleID int64) error

	// RevokeRole removes the link. Returns ErrNotFound if it did not exist.
	RevokeRole(ctx context.Context, userID string, roleID int64) error

	// HasRole reports whether the named user holds the named role.
	HasRole(ctx context.Context, username, role string) (bool, error)

	// CountUsersWithRole counts users holding the named role.
	CountUsersWithRole(ctx context.Context, role string) (int, error)
}

type Problems interface {
	GetProblemByText(ctx context.Context, text string) (domain.Problem, error)

	// CreateProblem inserts a problem. Returns ErrAlreadyExists when the
	// text is already stored.
	CreateProblem(ctx context.Context, p domain.Problem) error

	// UpdateProblemAnswer replaces the answer. Returns ErrNotFound when the
	// text is unknown.
	UpdateProblemAnswer(ctx context.Context, text, answer string) error

	// ListProblems returns all problems ordered by creation.
	ListProblems(ctx context.Context) ([]domain.Problem, error)
}

type Stats interface {
	// UpsertAttempt creates the (user, problem) row with attempts=1 or
	// increments attempts and overwrites solved.
	UpsertAttempt(ctx context.Context, userID, problemID string, solved bool) error

	// ListAttempts returns a user's rows joined with the problem text.
	ListAttempts(ctx context.Context, userID string) ([]domain.Attempt, error)

	// Summaries aggregates every user's attempts; users without attempts
	// are included with zero counts.
	Summaries(ctx context.Context) ([]domain.UserSummary, error)

	// SummaryForUser is Summaries restricted to one user.
	SummaryForUser(ctx context.Context, username string) (domain.UserSummary, error)
}
