// Package session stores signed-in sessions. A session records who signed in
// and until when; it never records the caller's role.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown or expired tokens.
var ErrNotFound = errors.New("session not found")

// DefaultTTL is used when a store is created with a non-positive ttl.
const DefaultTTL = 24 * time.Hour

// Session is an opaque bearer token bound to one user.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is no longer valid at t.
func (s Session) Expired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// Store persists sessions.
type Store interface {
	Create(ctx context.Context, userID, email string) (Session, error)
	Get(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
}
