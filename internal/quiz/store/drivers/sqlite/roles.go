package sqlite

import (
	"context"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/domain"
)

type rolesRepo struct {
	db dbtx
}

func (r *rolesRepo) GetRoleByName(ctx context.Context, name string) (domain.Role, error) {
	var role domain.Role
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name FROM roles WHERE name = ?`, name,
	).Scan(&role.ID, &role.Name)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	return role, nil
}


func (r *rolesRepo) AssignRole(ctx context.Context, userID string, roleID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)
		 ON CONFLICT(user_id, role_id) DO NOTHING`,
		userID, roleID,
	)
	return err
}

func (r *rolesRepo) RevokeRole(ctx context.Context, userID string, roleID int64) error {
	return mapAffected(r.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = ? AND role_id = ?`, userID, roleID,
	))
}

func (r *rolesRepo) HasRole(ctx context.Context, username, role string) (bool, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		   FROM user_roles ur
		   JOIN users u ON u.id = ur.user_id
		   JOIN roles r ON r.id = ur.role_id
		  WHERE u.username = ? AND r.name = ?`,
		username, role,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *rolesRepo) CountUsersWithRole(ctx context.Context, role string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		   FROM user_roles ur
		   JOIN roles r ON r.id = ur.role_id
		  WHERE r.name = ?`,
		role,
	).Scan(&n)
	return n, err
}
