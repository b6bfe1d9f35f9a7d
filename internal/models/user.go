package models

import "time"

// Role is resolved once per request by the auth middleware.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// ParseRole returns false for anything that is not a known role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return r, true
	}
	return "", false
}

// Principal is the authenticated caller
type Principal struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

func (p Principal) Is(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

type User struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
