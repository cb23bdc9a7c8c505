package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "otp:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *RedisStore) key(recipient string) string {
	return fmt.Sprintf("%s%s", s.keyPrefix, recipient)
}

func (s *RedisStore) Save(ctx context.Context, r VerificationRequest, keep time.Duration) error {
	r.Code = ""
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(r.Recipient), raw, keep).Err()
}

func (s *RedisStore) Get(ctx context.Context, recipient string) (*VerificationRequest, error) {
	val, err := s.client.Get(ctx, s.key(recipient)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var r VerificationRequest
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

var deleteScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if not val then return 0 end
local obj = cjson.decode(val)
if obj.id ~= ARGV[1] then return 0 end
redis.call("DEL", KEYS[1])
return 1
`)

func (s *RedisStore) Delete(ctx context.Context, recipient string, id uuid.UUID) error {
	return deleteScript.Run(ctx, s.client, []string{s.key(recipient)}, id.String()).Err()
}

// Both mutation scripts rewrite the value with the remaining PTTL so the
// retention window set by Save is preserved.
var recordFailureScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if not val then return -1 end
local obj = cjson.decode(val)
if obj.id ~= ARGV[1] then return -1 end
if obj.attempts_remaining > 0 then
  obj.attempts_remaining = obj.attempts_remaining - 1
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl and ttl > 0 then
  redis.call("SET", KEYS[1], cjson.encode(obj), "PX", ttl)
else
  redis.call("SET", KEYS[1], cjson.encode(obj))
end
return obj.attempts_remaining
`)

func (s *RedisStore) RecordFailure(ctx context.Context, recipient string, id uuid.UUID) (int, error) {
	res, err := recordFailureScript.Run(ctx, s.client, []string{s.key(recipient)}, id.String()).Int()
	if err != nil {
		return 0, err
	}
	if res < 0 {
		return 0, ErrNotFound
	}
	return res, nil
}

var markConsumedScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if not val then return 0 end
local obj = cjson.decode(val)
if obj.id ~= ARGV[1] then return 0 end
if obj.consumed then return -1 end
obj.consumed = true
local ttl = redis.call("PTTL", KEYS[1])
if ttl and ttl > 0 then
  redis.call("SET", KEYS[1], cjson.encode(obj), "PX", ttl)
else
  redis.call("SET", KEYS[1], cjson.encode(obj))
end
return 1
`)

func (s *RedisStore) MarkConsumed(ctx context.Context, recipient string, id uuid.UUID) error {
	res, err := markConsumedScript.Run(ctx, s.client, []string{s.key(recipient)}, id.String()).Int()
	if err != nil {
		return err
	}
	switch res {
	case 0:
		return ErrNotFound
	case -1:
		return ErrAlreadyConsumed
	default:
		return nil
	}
}

// PurgeExpired is a no-op; Redis evicts records through the key TTL.
func (s *RedisStore) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
