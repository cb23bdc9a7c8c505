package core

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRateLimiter struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisRateLimiter(client *redis.Client, keyPrefix string) *RedisRateLimiter {
	if keyPrefix == "" {
		keyPrefix = "otp-rate:"
	}
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Returns {allowed, pttl}; the counter key lives exactly one window.
var rateLimitScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current == false then
	redis.call("SET", KEYS[1], 1, "PX", ARGV[2])
	return {1, tonumber(ARGV[2])}
end
if tonumber(current) >= tonumber(ARGV[1]) then
	return {0, redis.call("PTTL", KEYS[1])}
end
redis.call("INCR", KEYS[1])
return {1, redis.call("PTTL", KEYS[1])}
`)

func (r *RedisRateLimiter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) error {
	k := fmt.Sprintf("%s%s", r.keyPrefix, key)
	res, err := rateLimitScript.Run(ctx, r.client, []string{k}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return err
	}
	if len(res) != 2 {
		return fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	if res[0] == 0 {
		retry := time.Duration(res[1]) * time.Millisecond
		if retry < 0 {
			retry = window
		}
		return &RateLimited{RetryAfter: retry}
	}
	return nil
}
