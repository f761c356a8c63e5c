package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Store counts requests per key inside a fixed window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, resetAt time.Time, err error)
}

type windowEntry struct {
	Count     int
	ResetTime time.Time
}

// MemoryStore keeps counters in process. Counters are lost on restart and
// not shared between replicas.
type MemoryStore struct {
	cache *cache.Cache
	mutex sync.Mutex
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: cache.New(5*time.Minute, 10*time.Minute),
		now:   time.Now,
	}
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, int, time.Time, error) {
	now := s.now()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if item, found := s.cache.Get(key); found {
		entry := item.(windowEntry)

		if now.Before(entry.ResetTime) {
			if entry.Count >= limit {
				return false, 0, entry.ResetTime, nil
			}

			entry.Count++
			s.cache.Set(key, entry, entry.ResetTime.Sub(now))

			return true, limit - entry.Count, entry.ResetTime, nil
		}
	}

	resetTime := now.Add(window)
	s.cache.Set(key, windowEntry{Count: 1, ResetTime: resetTime}, window)

	return true, limit - 1, resetTime, nil
}

// The first hit of a window sets the expiry so the key disappears with it.
var fixedWindowScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisStore shares counters between every replica pointing at the same
// Redis.
type RedisStore struct {
	client redis.Scripter
	prefix string
}

func NewRedisStore(client redis.Scripter, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Time, error) {
	result, err := fixedWindowScript.Run(ctx, s.client, []string{s.prefix + key}, window.Milliseconds()).Int64Slice()

	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit script: %w", err)
	}

	if len(result) != 2 {
		return false, 0, time.Time{}, errors.New("rate limit script: unexpected reply")
	}

	count, ttl := int(result[0]), time.Duration(result[1])*time.Millisecond
	resetAt := time.Now().Add(ttl)

	if count > limit {
		return false, 0, resetAt, nil
	}

	return true, limit - count, resetAt, nil
}
