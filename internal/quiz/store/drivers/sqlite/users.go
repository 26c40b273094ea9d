package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/domain"
)

type usersRepo struct {
	db dbtx
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	var (
		u         domain.User
		lastLogin sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, last_login, created_at
		   FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &lastLogin, &u.CreatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.LastLogin = mapNullTimePtr(lastLogin)
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return mapInserted(r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(username) DO NOTHING`,
		u.ID, u.Username, u.PasswordHash, createdAt,
	))
}

func (r *usersRepo) DeleteUserByUsername(ctx context.Context, username string) error {
	return mapAffected(r.db.ExecContext(ctx,
		`DELETE FROM users WHERE username = ?`, username,
	))
}

func (r *usersRepo) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	return mapAffected(r.db.ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE id = ?`, at.UTC(), userID,
	))
}

func (r *usersRepo) ListUsersWithRoles(ctx context.Context) ([]domain.UserWithRoles, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.username, COALESCE(GROUP_CONCAT(r.name, ','), '')
		   FROM users u
		   LEFT JOIN user_roles ur ON ur.user_id = u.id
		   LEFT JOIN roles r ON r.id = ur.role_id
		  GROUP BY u.id
		  ORDER BY u.username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserWithRoles
	for rows.Next() {
		var (
			u     domain.UserWithRoles
			roles string
		)
		if err := rows.Scan(&u.Username, &roles); err != nil {
			return nil, err
		}
		if roles != "" {
			u.Roles = strings.Split(roles, ",")
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

