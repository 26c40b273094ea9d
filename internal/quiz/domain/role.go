package domain

// Seeded role names. The roles table holds exactly these two.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type Role struct {
	ID   int64
	Name string
}
