package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "agro:session:"

// RedisStore keeps sessions as JSON values that Redis expires on its own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(token string) string {
	return redisKeyPrefix + token
}

func (s *RedisStore) Create(ctx context.Context, userID, email string) (Session, error) {
	now := time.Now().UTC()
	sess := Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return Session{}, fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(sess.Token), data, s.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (Session, error) {
	data, err := s.client.Get(ctx, redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if sess.Expired(time.Now()) {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, redisKey(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
