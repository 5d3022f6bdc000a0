package repository

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore reserves delivery keys so duplicate webhook deliveries are
// suppressed. Reserve returns false when the key was already seen inside the
// suppression window. Release frees a reservation whose delivery failed to
// apply, so the upstream retry is processed instead of suppressed.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type redisIdempotencyStore struct {
	client *redis.Client
	prefix string
}

// NewRedisIdempotencyStore backs idempotency keys with Redis SET NX.
func NewRedisIdempotencyStore(client *redis.Client) IdempotencyStore {
	return &redisIdempotencyStore{client: client, prefix: "webhook:idem:"}
}

func (s *redisIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, 1, ttl).Result()
}

func (s *redisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

type memoryIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryIdempotencyStore is an in-process fallback used when Redis is not
// configured, and by tests.
func NewMemoryIdempotencyStore() IdempotencyStore {
	return &memoryIdempotencyStore{seen: make(map[string]time.Time)}
}

func (s *memoryIdempotencyStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, expiry := range s.seen {
		if !now.Before(expiry) {
			delete(s.seen, k)
		}
	}
	if expiry, ok := s.seen[key]; ok && now.Before(expiry) {
		return false, nil
	}
	s.seen[key] = now.Add(ttl)
	return true, nil
}

func (s *memoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.seen, key)
	s.mu.Unlock()
	return nil
}
