package auth

import "github.com/dukerupert/fellowship/internal/model"

func rank(role string) int {
	switch role {
	case model.RoleAdmin:
		return 3
	case model.RoleLeader:
		return 2
	case model.RoleUser:
		return 1
	default:
		return 0
	}
}

// Satisfies reports whether a user holding role meets the required role.
// Roles are ordered admin > leader > user; unknown roles satisfy nothing.
func Satisfies(role, required string) bool {
	r := rank(role)
	return r > 0 && r >= rank(required)
}
