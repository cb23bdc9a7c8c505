package core

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/tunaaoguzhann/schoolgate/logging"
)

// Channel delivers an issued code to its recipient out of band.
type Channel interface {
	Send(ctx context.Context, recipient, code string) error
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc func(ctx context.Context, recipient, code string) error

func (f ChannelFunc) Send(ctx context.Context, recipient, code string) error {
	return f(ctx, recipient, code)
}

// LogChannel is the dry-run channel: nothing leaves the process and the code
// is only written at debug level.
type LogChannel struct{}

func (LogChannel) Send(ctx context.Context, recipient, code string) error {
	if err := ctx.Err(); err != nil {
		return timeoutError(err)
	}
	logging.Logger.WithField("recipient", recipient).Info("verification code dispatched (dry-run)")
	logging.Logger.WithFields(logrus.Fields{
		"recipient": recipient,
		"code":      code,
	}).Debug("dry-run verification code")
	return nil
}
