package auth

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// User is a credential-store entry.
type User struct {
	ID    string
	Email string
}

// Directory is the credential store plus its side role table.
//
// Authenticate returns ErrInvalidCredentials for an unknown email or a wrong
// password. RoleOf returns RoleUser for users without a role row.
type Directory interface {
	Authenticate(ctx context.Context, email, password string) (User, error)
	CreateUser(ctx context.Context, email, password string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	AssignRole(ctx context.Context, userID string, role Role) error
	RoleOf(ctx context.Context, userID string) (Role, error)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// decoys caches one throwaway hash per bcrypt cost.
var decoys sync.Map

func decoyHash(cost int) string {
	if h, ok := decoys.Load(cost); ok {
		return h.(string)
	}
	h, err := hashPassword("agro-portal-decoy", cost)
	if err != nil {
		return ""
	}
	actual, _ := decoys.LoadOrStore(cost, h)
	return actual.(string)
}

// rejectUnknown spends the same bcrypt work as a real comparison so an
// unknown email answers as slowly as a wrong password.
func rejectUnknown(password string, cost int) {
	_ = checkPassword(decoyHash(cost), password)
}
