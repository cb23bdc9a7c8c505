package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tunaaoguzhann/schoolgate/logging"
)

const (
	DefaultTTL         = 5 * time.Minute
	DefaultRetention   = 10 * time.Minute
	DefaultMaxAttempts = 5
	DefaultOpTimeout   = 10 * time.Second
)

// Manager issues and verifies codes. Issue and Verify are serialized per
// recipient; different recipients proceed concurrently.
type Manager struct {
	store       Store
	signer      *Signer
	now         func() time.Time
	ttl         time.Duration
	retention   time.Duration
	maxAttempts int
	codeLength  int
	opTimeout   time.Duration
	rateLimiter RateLimiter
	rateLimit   int
	rateWindow  time.Duration
	locks       *keyedMutex
}

type Config struct {
	Store       Store
	Signer      *Signer
	Now         func() time.Time
	TTL         time.Duration
	Retention   time.Duration
	MaxAttempts int
	// CodeLength counts digits; codes are always numeric.
	CodeLength  int
	// OpTimeout bounds an operation whose context carries no deadline.
	OpTimeout   time.Duration
	RateLimiter RateLimiter
	RateLimit   int
	RateWindow  time.Duration
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	if cfg.MaxAttempts < 0 || cfg.CodeLength < 0 || cfg.TTL < 0 {
		return nil, fmt.Errorf("ttl, max attempts and code length must not be negative")
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	m := &Manager{
		store:       cfg.Store,
		signer:      cfg.Signer,
		now:         nowFn,
		ttl:         orDuration(cfg.TTL, DefaultTTL),
		retention:   orDuration(cfg.Retention, DefaultRetention),
		maxAttempts: cfg.MaxAttempts,
		codeLength:  cfg.CodeLength,
		opTimeout:   orDuration(cfg.OpTimeout, DefaultOpTimeout),
		rateLimiter: cfg.RateLimiter,
		rateLimit:   cfg.RateLimit,
		rateWindow:  cfg.RateWindow,
		locks:       newKeyedMutex(),
	}
	if m.maxAttempts == 0 {
		m.maxAttempts = DefaultMaxAttempts
	}
	if m.codeLength == 0 {
		m.codeLength = DefaultCodeLength
	}
	if m.rateLimit > 0 && m.rateWindow == 0 {
		m.rateWindow = time.Hour
	}
	return m, nil
}

func orDuration(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}

func (m *Manager) CodeLength() int { return m.codeLength }
func (m *Manager) MaxAttempts() int { return m.maxAttempts }
func (m *Manager) TTL() time.Duration { return m.ttl }
func (m *Manager) Store() Store { return m.store }
func (m *Manager) Now() time.Time { return m.now() }

// Issue creates a fresh code for recipient, replacing any earlier request.
// The returned value is the only place the cleartext code appears.
func (m *Manager) Issue(ctx context.Context, recipient string) (VerificationRequest, error) {
	recipient, err := NormalizeRecipient(recipient)
	if err != nil {
		return VerificationRequest{}, err
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	if m.rateLimiter != nil && m.rateLimit > 0 {
		if err := m.rateLimiter.CheckAndIncrement(ctx, recipient, m.rateLimit, m.rateWindow); err != nil {
			return VerificationRequest{}, m.wrap(ctx, err)
		}
	}

	code, err := GenerateCode(m.codeLength, DigitAlphabet)
	if err != nil {
		return VerificationRequest{}, err
	}

	unlock := m.locks.Lock(recipient)
	defer unlock()

	now := m.now()
	req := VerificationRequest{
		ID:                uuid.New(),
		Recipient:         recipient,
		Code:              code,
		CodeDigest:        m.signer.Digest(recipient, code),
		IssuedAt:          now,
		ExpiresAt:         now.Add(m.ttl),
		AttemptsRemaining: m.maxAttempts,
	}
	if err := m.store.Save(ctx, req, m.ttl+m.retention); err != nil {
		return VerificationRequest{}, m.wrap(ctx, err)
	}

	logging.Logger.WithFields(logrus.Fields{
		"recipient":  recipient,
		"request_id": req.ID,
		"expires_at": req.ExpiresAt,
	}).Debug("verification code issued")
	return req, nil
}

// Verify checks code against the active request for recipient. Failures are
// *Rejection values; on success the request is consumed and returned.
func (m *Manager) Verify(ctx context.Context, recipient, code string) (*VerificationRequest, error) {
	recipient, err := NormalizeRecipient(recipient)
	if err != nil {
		return nil, err
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	unlock := m.locks.Lock(recipient)
	defer unlock()

	req, err := m.store.Get(ctx, recipient)
	if errors.Is(err, ErrNotFound) {
		return nil, reject(ErrNotFound, 0)
	}
	if err != nil {
		return nil, m.wrap(ctx, err)
	}

	if req.Expired(m.now()) {
		if err := m.store.Delete(ctx, recipient, req.ID); err != nil {
			logging.Logger.WithError(err).Warn("failed to drop expired verification")
		}
		return nil, reject(ErrExpired, req.AttemptsRemaining)
	}
	if req.Consumed {
		return nil, reject(ErrAlreadyConsumed, req.AttemptsRemaining)
	}
	if req.AttemptsRemaining <= 0 {
		return nil, reject(ErrAttemptsExhausted, 0)
	}

	if !m.signer.Verify(recipient, code, req.CodeDigest) {
		remaining, err := m.store.RecordFailure(ctx, recipient, req.ID)
		if errors.Is(err, ErrNotFound) {
			return nil, reject(ErrNotFound, 0)
		}
		if err != nil {
			return nil, m.wrap(ctx, err)
		}
		logging.Logger.WithFields(logrus.Fields{
			"recipient": recipient,
			"remaining": remaining,
		}).Info("verification code mismatch")
		if remaining == 0 {
			return nil, reject(ErrAttemptsExhausted, 0)
		}
		return nil, reject(ErrMismatch, remaining)
	}

	if err := m.store.MarkConsumed(ctx, recipient, req.ID); err != nil {
		switch {
		case errors.Is(err, ErrAlreadyConsumed), errors.Is(err, ErrNotFound):
			return nil, reject(err, req.AttemptsRemaining)
		default:
			return nil, m.wrap(ctx, err)
		}
	}
	req.Consumed = true

	logging.Logger.WithField("recipient", recipient).Info("verification succeeded")
	return req, nil
}

// Sweep purges records whose expiry plus retention has passed, along with
// closed rate windows of an in-process limiter.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	now := m.now()
	if p, ok := m.rateLimiter.(interface{ Purge(time.Time) int }); ok {
		p.Purge(now)
	}
	return m.store.PurgeExpired(ctx, now.Add(-m.retention))
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || m.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.opTimeout)
}

// wrap turns context expiry into ErrTimeout and leaves other errors alone.
func (m *Manager) wrap(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return timeoutError(err)
	}
	return err
}

func timeoutError(err error) error {
	if errors.Is(err, ErrTimeout) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTimeout, err)
}
