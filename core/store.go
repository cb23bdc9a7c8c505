package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists at most one VerificationRequest per recipient.
// RecordFailure and MarkConsumed only touch the record whose ID matches, so a
// request replaced in between read and write is left alone (ErrNotFound).
type Store interface {
	// Save replaces any prior request for r.Recipient. keep is how long the
	// record may be retained by the backend.
	Save(ctx context.Context, r VerificationRequest, keep time.Duration) error
	Get(ctx context.Context, recipient string) (*VerificationRequest, error)
	Delete(ctx context.Context, recipient string, id uuid.UUID) error
	RecordFailure(ctx context.Context, recipient string, id uuid.UUID) (int, error)
	MarkConsumed(ctx context.Context, recipient string, id uuid.UUID) error
	// PurgeExpired drops records whose expiry is older than before.
	PurgeExpired(ctx context.Context, before time.Time) (int, error)
}
