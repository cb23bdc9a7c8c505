package core

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStoreContract(t *testing.T) {
	client := newTestRedis(t)
	prefix := "otp-test:" + uuid.NewString() + ":"
	exerciseStore(t, NewRedisStore(client, prefix), "a@example.org")
}

func TestRedisStoreKeepsTTLAcrossMutations(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	store := NewRedisStore(client, "otp-test:"+uuid.NewString()+":")
	req := sampleRequest("a@example.org", time.Now().Add(time.Minute))

	require.NoError(t, store.Save(ctx, req, 30*time.Second))
	_, err := store.RecordFailure(ctx, req.Recipient, req.ID)
	require.NoError(t, err)

	ttl, err := client.PTTL(ctx, store.key(req.Recipient)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 30*time.Second)
}

func TestRedisRateLimiter(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	limiter := NewRedisRateLimiter(client, "otp-rate-test:"+uuid.NewString()+":")

	require.NoError(t, limiter.CheckAndIncrement(ctx, "a", 2, time.Minute))
	require.NoError(t, limiter.CheckAndIncrement(ctx, "a", 2, time.Minute))
	err := limiter.CheckAndIncrement(ctx, "a", 2, time.Minute)
	require.ErrorIs(t, err, ErrRateLimitExceeded)
	var limited *RateLimited
	require.ErrorAs(t, err, &limited)
	assert.Greater(t, limited.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, limited.RetryAfter, time.Minute)
}
