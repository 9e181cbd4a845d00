package domain

import "time"

// Role classifies a user's privilege level. The set is closed; the auth
// guard checks membership against it rather than comparing raw strings.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User represents an authenticated user of the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
