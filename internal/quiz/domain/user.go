package domain

import "time"

type User struct {
	ID           string
	Username     string
	PasswordHash string     // argon2 encoded
	LastLogin    *time.Time // nil until the first successful auth
	CreatedAt    time.Time
}

// UserWithRoles is a listing row: a user and the names of the roles they hold.
type UserWithRoles struct {
	Username string
	Roles    []string
}

// HasRole reports whether name is among the user's roles.
func (u UserWithRoles) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}
