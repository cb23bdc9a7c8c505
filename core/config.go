package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type ManagerOptions struct {
	// Redis takes precedence over RedisAddr when both are set.
	Redis          *redis.Client
	RedisAddr      string
	RedisKeyPrefix string
	Secret         string
	TTL            time.Duration
	Retention      time.Duration
	MaxAttempts    int
	CodeLength     int
	OpTimeout      time.Duration
	RateLimit      int
	RateWindow     time.Duration
	Now            func() time.Time
}

// NewManagerWithOptions picks the Redis backend when a client or address is
// configured and the in-memory one otherwise.
func NewManagerWithOptions(opts ManagerOptions) (*Manager, error) {
	if opts.Secret == "" {
		return nil, fmt.Errorf("secret is required")
	}

	var store Store
	var rateLimiter RateLimiter

	client := opts.Redis
	if client == nil && opts.RedisAddr != "" {
		client = redis.NewClient(&redis.Options{
			Addr: opts.RedisAddr,
		})
	}

	if client != nil {
		keyPrefix := opts.RedisKeyPrefix
		if keyPrefix == "" {
			keyPrefix = "otp:"
		}
		if !strings.HasSuffix(keyPrefix, ":") {
			keyPrefix += ":"
		}
		store = NewRedisStore(client, keyPrefix)
		if opts.RateLimit > 0 {
			rateLimiter = NewRedisRateLimiter(client, rateKeyPrefix(keyPrefix))
		}
	} else {
		store = NewMemoryStore()
		if opts.RateLimit > 0 {
			rateLimiter = NewMemoryRateLimiter()
		}
	}

	rateWindow := opts.RateWindow
	if rateWindow == 0 && opts.RateLimit > 0 {
		rateWindow = 1 * time.Hour
	}

	cfg := Config{
		Store:       store,
		Signer:      NewSigner(opts.Secret),
		Now:         opts.Now,
		TTL:         opts.TTL,
		Retention:   opts.Retention,
		MaxAttempts: opts.MaxAttempts,
		CodeLength:  opts.CodeLength,
		OpTimeout:   opts.OpTimeout,
		RateLimiter: rateLimiter,
		RateLimit:   opts.RateLimit,
		RateWindow:  rateWindow,
	}
	return NewManager(cfg)
}

// rateKeyPrefix derives a counter namespace that no "<prefix><recipient>"
// store key can fall into: "otp:" becomes "otp-rate:".
func rateKeyPrefix(storePrefix string) string {
	return strings.TrimSuffix(storePrefix, ":") + "-rate:"
}
