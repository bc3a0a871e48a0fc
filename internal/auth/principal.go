// Package auth resolves who is calling and what they may do. Credentials live
// in a Directory; roles live in a separate role table so they can be revoked
// without touching credentials.
package auth

import "strings"

// Role is the caller's authorization level.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
)

// ParseRole maps a stored role value to a Role. Unknown values are treated as
// RoleUser so a corrupt row never grants admin.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Principal is the resolved identity of a caller. It is passed explicitly to
// anything that makes an authorization decision.
type Principal struct {
	Authenticated bool   `json:"isAuthenticated"`
	Role          Role   `json:"role"`
	UserID        string `json:"userId,omitempty"`
	Email         string `json:"email,omitempty"`
}

// Anonymous is the principal of a caller without a valid session.
func Anonymous() Principal {
	return Principal{Role: RoleAnonymous}
}

func newPrincipal(userID, email string, role Role) Principal {
	return Principal{
		Authenticated: true,
		Role:          role,
		UserID:        userID,
		Email:         email,
	}
}

// IsAdmin reports role == admin. Being authenticated is not enough.
func (p Principal) IsAdmin() bool {
	return p.Authenticated && p.Role == RoleAdmin
}

// CanWriteAssets is the gate every asset write must pass.
func CanWriteAssets(p Principal) bool {
	return p.IsAdmin()
}
