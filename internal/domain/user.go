package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the authorization flag stored per user.
type Role string

const (
	RoleUser  Role = "user"
	RoleTarot Role = "tarot"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleTarot, RoleAdmin:
		return true
	default:
		return false
	}
}

// User represents a Telegram user stored in the database. ID is the Telegram identifier.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	Role      Role
	CreatedAt time.Time
}

// DisplayName prefers the username and falls back to the first name, then to the id.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	return DisplayName(u.Username, u.FirstName, u.ID)
}

// Handle renders "@username" when a username exists.
func (u *User) Handle() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimPrefix(strings.TrimSpace(u.Username), "@"); name != "" {
		return "@" + name
	}
	return DisplayName("", u.FirstName, u.ID)
}

// DisplayName picks the best available human-readable name.
func DisplayName(username, firstName string, id int64) string {
	if name := strings.TrimSpace(username); name != "" {
		return name
	}
	if name := strings.TrimSpace(firstName); name != "" {
		return name
	}
	if id == 0 {
		return ""
	}
	return fmt.Sprintf("ID:%d", id)
}
