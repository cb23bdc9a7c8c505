package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tunaaoguzhann/schoolgate/logging"
)

type State int

const (
	StateIdle State = iota
	StateRequesting
	StateAwaitingCode
	StateVerifying
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateAwaitingCode:
		return "awaiting_code"
	case StateVerifying:
		return "verifying"
	case StateUnlocked:
		return "unlocked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Authority issues and verifies codes; *Manager is the production one.
type Authority interface {
	Issue(ctx context.Context, recipient string) (VerificationRequest, error)
	Verify(ctx context.Context, recipient, code string) (*VerificationRequest, error)
}

// Gate guards one protected action for one recipient. Its lock is never held
// across Issue, Send or Verify, so a call arriving while another is in flight
// fails with ErrInvalidTransition.
type Gate struct {
	mu         sync.Mutex
	id         uuid.UUID
	recipient  string
	auth       Authority
	channel    Channel
	now        func() time.Time
	codeLength int

	state     State
	lastErr   error
	remaining int
	expiresAt time.Time
	updatedAt time.Time
	released  bool
}

type GateOption func(*Gate)

func WithGateClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

func WithCodeLength(n int) GateOption {
	return func(g *Gate) { g.codeLength = n }
}

func NewGate(recipient string, auth Authority, channel Channel, opts ...GateOption) (*Gate, error) {
	recipient, err := NormalizeRecipient(recipient)
	if err != nil {
		return nil, err
	}
	if auth == nil || channel == nil {
		return nil, fmt.Errorf("authority and channel are required")
	}
	g := &Gate{
		id:         uuid.New(),
		recipient:  recipient,
		auth:       auth,
		channel:    channel,
		now:        time.Now,
		codeLength: DefaultCodeLength,
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.updatedAt = g.now()
	return g, nil
}

func (g *Gate) ID() uuid.UUID     { return g.id }
func (g *Gate) Recipient() string { return g.recipient }

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Request issues the first code and delivers it.
func (g *Gate) Request(ctx context.Context) error {
	g.mu.Lock()
	if g.state != StateIdle {
		defer g.mu.Unlock()
		return g.invalid("request")
	}
	return g.dispatch(ctx)
}

// Resend issues a fresh code, invalidating the one delivered before.
func (g *Gate) Resend(ctx context.Context) error {
	g.mu.Lock()
	if g.state != StateIdle && g.state != StateAwaitingCode {
		defer g.mu.Unlock()
		return g.invalid("resend")
	}
	return g.dispatch(ctx)
}

// dispatch is entered with g.mu held and returns with it released.
func (g *Gate) dispatch(ctx context.Context) error {
	g.state = StateRequesting
	g.lastErr = nil
	g.touch()
	g.mu.Unlock()

	req, err := g.auth.Issue(ctx, g.recipient)
	if err == nil {
		err = g.send(ctx, req)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.touch()
	if err != nil {
		g.state = StateIdle
		g.lastErr = err
		g.log().WithError(err).Warn("code request failed")
		return err
	}
	g.state = StateAwaitingCode
	g.remaining = req.AttemptsRemaining
	g.expiresAt = req.ExpiresAt
	g.log().Info("code delivered")
	return nil
}

// send hands the code to the channel and gives up when ctx ends first. The
// stored request stays valid either way.
func (g *Gate) send(ctx context.Context, req VerificationRequest) error {
	if err := ctx.Err(); err != nil {
		return timeoutError(err)
	}
	done := make(chan error, 1)
	go func() {
		done <- g.channel.Send(ctx, req.Recipient, req.Code)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		return timeoutError(ctx.Err())
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrDeliveryFailed):
		return err
	case ctx.Err() != nil:
		return timeoutError(err)
	default:
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
}

// Submit checks a code typed by the user. Non-digits are stripped first; a
// code of the wrong length is refused without spending an attempt.
func (g *Gate) Submit(ctx context.Context, raw string) error {
	g.mu.Lock()
	if g.state != StateAwaitingCode {
		defer g.mu.Unlock()
		return g.invalid("submit")
	}
	code := SanitizeCode(raw)
	if len(code) != g.codeLength {
		defer g.mu.Unlock()
		g.lastErr = fmt.Errorf("%w: expected %d digits", ErrMalformedCode, g.codeLength)
		g.touch()
		return g.lastErr
	}
	g.state = StateVerifying
	g.touch()
	g.mu.Unlock()

	_, err := g.auth.Verify(ctx, g.recipient, code)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.touch()
	g.lastErr = err
	if err == nil {
		g.state = StateUnlocked
		g.log().Info("gate unlocked")
		return nil
	}

	var rej *Rejection
	if errors.As(err, &rej) {
		g.remaining = rej.AttemptsRemaining
	}
	switch {
	case errors.Is(err, ErrMismatch), errors.Is(err, ErrTimeout):
		g.state = StateAwaitingCode
	default:
		g.state = StateIdle
	}
	g.log().WithField("reason", ReasonCode(err)).Info("code rejected")
	return err
}

// Release reports true exactly once, after the gate unlocked.
func (g *Gate) Release() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateUnlocked || g.released {
		return false
	}
	g.released = true
	g.touch()
	return true
}

type GateStatus struct {
	ID                uuid.UUID `json:"id"`
	Recipient         string    `json:"recipient"`
	State             State     `json:"state"`
	Reason            string    `json:"reason,omitempty"`
	Message           string    `json:"message,omitempty"`
	Recovery          Recovery  `json:"recovery,omitempty"`
	AttemptsRemaining int       `json:"attempts_remaining"`
	ExpiresAt         time.Time `json:"expires_at,omitempty"`
	Released          bool      `json:"released"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (g *Gate) Status() GateStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := GateStatus{
		ID:                g.id,
		Recipient:         g.recipient,
		State:             g.state,
		AttemptsRemaining: g.remaining,
		ExpiresAt:         g.expiresAt,
		Released:          g.released,
		UpdatedAt:         g.updatedAt,
	}
	if g.lastErr != nil {
		st.Reason = ReasonCode(g.lastErr)
		st.Message = g.lastErr.Error()
		st.Recovery = RecoveryFor(g.lastErr)
	}
	return st
}

// LastUpdate is when the gate last changed state.
func (g *Gate) LastUpdate() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.updatedAt
}

func (g *Gate) invalid(op string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, op, g.state)
}

func (g *Gate) touch() {
	g.updatedAt = g.now()
}

func (g *Gate) log() *logrus.Entry {
	return logging.Logger.WithFields(logrus.Fields{
		"gate":      g.id,
		"recipient": g.recipient,
		"state":     g.state.String(),
	})
}
