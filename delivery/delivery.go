// Package delivery holds the channels that carry verification codes to people.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tunaaoguzhann/schoolgate/core"
)

// abandonable runs send in its own goroutine and stops waiting when ctx ends.
// Providers whose clients take no context go through here.
func abandonable(ctx context.Context, send func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrTimeout, err)
	}
	done := make(chan error, 1)
	go func() { done <- send() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", core.ErrTimeout, ctx.Err())
	}
}

// failure tags a provider error with ErrDeliveryFailed unless it is already a
// timeout.
func failure(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrTimeout) || errors.Is(err, core.ErrDeliveryFailed) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", core.ErrTimeout, provider, err)
	}
	return fmt.Errorf("%w: %s: %v", core.ErrDeliveryFailed, provider, err)
}

// ByAddress routes email addresses to Email and everything else to SMS.
type ByAddress struct {
	Email core.Channel
	SMS   core.Channel
}

func (b ByAddress) Send(ctx context.Context, recipient, code string) error {
	ch := b.SMS
	if strings.Contains(recipient, "@") {
		ch = b.Email
	}
	if ch == nil {
		return fmt.Errorf("%w: no channel for %q", core.ErrDeliveryFailed, recipient)
	}
	return ch.Send(ctx, recipient, code)
}
