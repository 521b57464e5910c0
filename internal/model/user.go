package model

import "time"

// Roles, from most to least privileged.
const (
	RoleAdmin  = "admin"
	RoleLeader = "leader"
	RoleUser   = "user"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleLeader, RoleUser:
		return true
	}
	return false
}
