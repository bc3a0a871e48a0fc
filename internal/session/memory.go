package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a concurrency-safe in-process session store. Expired entries
// are dropped lazily on lookup and in bulk by Sweep.
type MemoryStore struct {
	mu sync.RWMutex

	// key: token
	data map[string]Session

	ttl time.Duration
	now func() time.Time
}

// NewMemoryStore creates a MemoryStore whose sessions live for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		data: make(map[string]Session),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, userID, email string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	now := s.now().UTC()
	sess := Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.data[sess.Token] = sess
	s.mu.Unlock()
	return sess, nil
}

func (s *MemoryStore) Get(ctx context.Context, token string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.RLock()
	sess, ok := s.data[token]
	s.mu.RUnlock()
	if !ok {
		return Session{}, ErrNotFound
	}
	if sess.Expired(s.now()) {
		s.mu.Lock()
		delete(s.data, token)
		s.mu.Unlock()
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.data, token)
	s.mu.Unlock()
	return nil
}

// Sweep removes every expired session and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, sess := range s.data {
		if sess.Expired(now) {
			delete(s.data, token)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
