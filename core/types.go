package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VerificationRequest is a single issued code bound to a recipient.
// Code is only populated on the value returned from Manager.Issue; stores
// persist CodeDigest.
type VerificationRequest struct {
	ID                uuid.UUID `json:"id"`
	Recipient         string    `json:"recipient"`
	Code              string    `json:"-"`
	CodeDigest        string    `json:"code_digest"`
	IssuedAt          time.Time `json:"issued_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	AttemptsRemaining int       `json:"attempts_remaining"`
	Consumed          bool      `json:"consumed"`
}

func (r VerificationRequest) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Active reports whether the request can still be verified.
func (r VerificationRequest) Active(now time.Time) bool {
	return !r.Consumed && !r.Expired(now) && r.AttemptsRemaining > 0
}

var (
	ErrNotFound          = errors.New("verification not found")
	ErrExpired           = errors.New("verification expired")
	ErrAttemptsExhausted = errors.New("verification attempts exhausted")
	ErrMismatch          = errors.New("verification code mismatch")
	ErrAlreadyConsumed   = errors.New("verification already consumed")
	ErrDeliveryFailed    = errors.New("verification delivery failed")
	ErrTimeout           = errors.New("verification timed out")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrMalformedCode     = errors.New("malformed verification code")
	ErrInvalidRecipient  = errors.New("invalid recipient")
	ErrInvalidTransition = errors.New("invalid gate transition")
)

// Rejection is returned by Manager.Verify for every failed verification.
// It unwraps to one of the sentinel errors above.
type Rejection struct {
	Reason            error
	AttemptsRemaining int
}

func (r *Rejection) Error() string {
	if errors.Is(r.Reason, ErrMismatch) {
		return fmt.Sprintf("%v (%d attempts remaining)", r.Reason, r.AttemptsRemaining)
	}
	return r.Reason.Error()
}

func (r *Rejection) Unwrap() error { return r.Reason }

func reject(reason error, remaining int) error {
	return &Rejection{Reason: reason, AttemptsRemaining: remaining}
}

// Recovery names the action a caller should offer after a failure.
type Recovery string

const (
	RecoveryNone      Recovery = ""
	RecoveryResubmit  Recovery = "resubmit"
	RecoveryResend    Recovery = "resend"
	RecoveryStartOver Recovery = "start_over"
	RecoveryRetry     Recovery = "retry"
	RecoveryWait      Recovery = "wait"
)

func RecoveryFor(err error) Recovery {
	switch {
	case err == nil:
		return RecoveryNone
	case errors.Is(err, ErrMismatch), errors.Is(err, ErrMalformedCode):
		return RecoveryResubmit
	case errors.Is(err, ErrExpired), errors.Is(err, ErrAttemptsExhausted), errors.Is(err, ErrNotFound):
		return RecoveryResend
	case errors.Is(err, ErrDeliveryFailed), errors.Is(err, ErrTimeout):
		return RecoveryRetry
	case errors.Is(err, ErrRateLimitExceeded):
		return RecoveryWait
	default:
		return RecoveryStartOver
	}
}

// ReasonCode is a stable snake_case identifier for err, used in API bodies.
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrAttemptsExhausted):
		return "attempts_exhausted"
	case errors.Is(err, ErrMismatch):
		return "mismatch"
	case errors.Is(err, ErrAlreadyConsumed):
		return "already_consumed"
	case errors.Is(err, ErrDeliveryFailed):
		return "delivery_failed"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRateLimitExceeded):
		return "rate_limit_exceeded"
	case errors.Is(err, ErrMalformedCode):
		return "malformed_code"
	case errors.Is(err, ErrInvalidRecipient):
		return "invalid_recipient"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "internal_error"
	}
}
