// AngelaMos | 2026
// redis.go

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "authlimit:"

// hitScript mirrors MemoryStore.Hit. Times are unix milliseconds passed in
// by the caller so the store follows the limiter's clock, not the server's.
var hitScript = redis.NewScript(`
local vals = redis.call('HMGET', KEYS[1], 'count', 'reset')
local count = vals[1] and tonumber(vals[1]) or nil
local reset = vals[2] and tonumber(vals[2]) or nil
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

if count == nil or reset == nil or now > reset then
	reset = now + window
	redis.call('HSET', KEYS[1], 'count', 1, 'reset', reset)
	redis.call('PEXPIRE', KEYS[1], window)
	return {1, reset, 1}
end

if count >= limit then
	return {count, reset, 0}
end

count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {count, reset, 1}
`)

// RedisStore shares window state between replicas. Keys also carry a TTL of
// one window so Redis reclaims them even without a sweep.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Hit(
	ctx context.Context,
	key string,
	now time.Time,
	window time.Duration,
	maxRequests int,
) (Entry, bool, error) {
	res, err := hitScript.Run(
		ctx,
		s.client,
		[]string{redisKeyPrefix + key},
		now.UnixMilli(),
		window.Milliseconds(),
		maxRequests,
	).Int64Slice()
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis hit: %w", err)
	}

	if len(res) != 3 {
		return Entry{}, false, fmt.Errorf("redis hit: unexpected reply length %d", len(res))
	}

	entry := Entry{
		Count:   int(res[0]),
		ResetAt: time.UnixMilli(res[1]),
	}

	return entry, res[2] == 1, nil
}

func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0

	err := s.scan(ctx, func(key string) error {
		raw, err := s.client.HGet(ctx, key, "reset").Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		resetMs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || now.After(time.UnixMilli(resetMs)) {
			if delErr := s.client.Del(ctx, key).Err(); delErr != nil {
				return delErr
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("redis sweep: %w", err)
	}

	return removed, nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	err := s.scan(ctx, func(string) error {
		n++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis len: %w", err)
	}
	return n, nil
}

func (s *RedisStore) scan(ctx context.Context, fn func(key string) error) error {
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	return iter.Err()
}

var _ Store = (*RedisStore)(nil)
