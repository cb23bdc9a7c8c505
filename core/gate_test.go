package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(t *testing.T) (*Gate, *captureChannel, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	m, _ := newTestManager(t, clock)
	ch := newCaptureChannel()
	g, err := NewGate("Principal@Example.org", m, ch, WithGateClock(clock.Now))
	require.NoError(t, err)
	return g, ch, clock
}

func TestGateHappyPath(t *testing.T) {
	g, ch, _ := newTestGate(t)
	ctx := context.Background()

	assert.Equal(t, StateIdle, g.State())
	assert.Equal(t, "principal@example.org", g.Recipient())
	require.NoError(t, g.Request(ctx))
	assert.Equal(t, StateAwaitingCode, g.State())

	code := ch.last(g.Recipient())
	require.Len(t, code, DefaultCodeLength)

	require.NoError(t, g.Submit(ctx, code[:3]+" "+code[3:]))
	assert.Equal(t, StateUnlocked, g.State())

	assert.True(t, g.Release())
	assert.False(t, g.Release(), "release happens once")
	assert.True(t, g.Status().Released)
}

func TestGateMismatchReturnsToAwaitingCode(t *testing.T) {
	g, ch, _ := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, g.Request(ctx))
	code := ch.last(g.Recipient())

	err := g.Submit(ctx, wrongCode(code))
	require.ErrorIs(t, err, ErrMismatch)
	assert.Equal(t, StateAwaitingCode, g.State())

	st := g.Status()
	assert.Equal(t, DefaultMaxAttempts-1, st.AttemptsRemaining)
	assert.Equal(t, "mismatch", st.Reason)
	assert.Equal(t, RecoveryResubmit, st.Recovery)
	assert.False(t, g.Release())

	require.NoError(t, g.Submit(ctx, code))
	assert.Equal(t, StateUnlocked, g.State())
	assert.Empty(t, g.Status().Reason)
}

func TestGateExhaustionGoesIdle(t *testing.T) {
	g, ch, _ := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, g.Request(ctx))
	bad := wrongCode(ch.last(g.Recipient()))

	for i := 0; i < DefaultMaxAttempts-1; i++ {
		require.ErrorIs(t, g.Submit(ctx, bad), ErrMismatch)
	}
	require.ErrorIs(t, g.Submit(ctx, bad), ErrAttemptsExhausted)
	assert.Equal(t, StateIdle, g.State())
	assert.Equal(t, RecoveryResend, g.Status().Recovery)

	require.ErrorIs(t, g.Submit(ctx, bad), ErrInvalidTransition)

	require.NoError(t, g.Resend(ctx))
	assert.Equal(t, StateAwaitingCode, g.State())
	assert.Equal(t, DefaultMaxAttempts, g.Status().AttemptsRemaining)
	require.NoError(t, g.Submit(ctx, ch.last(g.Recipient())))
}

func TestGateExpiredGoesIdle(t *testing.T) {
	g, ch, clock := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, g.Request(ctx))

	clock.Advance(DefaultTTL + time.Second)
	require.ErrorIs(t, g.Submit(ctx, ch.last(g.Recipient())), ErrExpired)
	assert.Equal(t, StateIdle, g.State())
}

func TestGateMalformedCodeKeepsAttempts(t *testing.T) {
	g, _, _ := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, g.Request(ctx))

	for _, raw := range []string{"", "12345", "abcdef", "1234567"} {
		err := g.Submit(ctx, raw)
		require.ErrorIs(t, err, ErrMalformedCode, raw)
	}
	assert.Equal(t, StateAwaitingCode, g.State())
	assert.Equal(t, DefaultMaxAttempts, g.Status().AttemptsRemaining)
}

func TestGateResendInvalidatesPriorCode(t *testing.T) {
	g, ch, _ := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, g.Request(ctx))
	first := ch.last(g.Recipient())

	require.NoError(t, g.Resend(ctx))
	second := ch.last(g.Recipient())

	if first != second {
		require.ErrorIs(t, g.Submit(ctx, first), ErrMismatch)
	}
	require.NoError(t, g.Submit(ctx, second))
}

func TestGateDeliveryFailure(t *testing.T) {
	g, ch, _ := newTestGate(t)
	ch.err = errors.New("smtp: connection refused")

	err := g.Request(context.Background())
	require.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Equal(t, StateIdle, g.State())
	assert.Equal(t, RecoveryRetry, g.Status().Recovery)

	ch.err = nil
	require.NoError(t, g.Request(context.Background()))
	assert.Equal(t, StateAwaitingCode, g.State())
}

func TestGateDeliveryTimeout(t *testing.T) {
	g, ch, _ := newTestGate(t)
	ch.block = make(chan struct{})
	defer close(ch.block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := g.Request(ctx)
	require.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrDeliveryFailed)
	assert.Equal(t, StateIdle, g.State())
}

func TestGateInvalidTransitions(t *testing.T) {
	g, ch, _ := newTestGate(t)
	ctx := context.Background()

	require.ErrorIs(t, g.Submit(ctx, "123456"), ErrInvalidTransition)
	assert.False(t, g.Release())

	require.NoError(t, g.Request(ctx))
	require.ErrorIs(t, g.Request(ctx), ErrInvalidTransition)

	require.NoError(t, g.Submit(ctx, ch.last(g.Recipient())))
	require.ErrorIs(t, g.Resend(ctx), ErrInvalidTransition)
	require.ErrorIs(t, g.Submit(ctx, "123456"), ErrInvalidTransition)
}

func TestGateConcurrentCallFailsFast(t *testing.T) {
	g, ch, _ := newTestGate(t)
	ch.block = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- g.Request(context.Background()) }()

	require.Eventually(t, func() bool { return g.State() == StateRequesting }, time.Second, time.Millisecond)
	require.ErrorIs(t, g.Resend(context.Background()), ErrInvalidTransition)

	close(ch.block)
	require.NoError(t, <-done)
	assert.Equal(t, StateAwaitingCode, g.State())
}

func TestNewGateRejectsBadRecipient(t *testing.T) {
	m, _ := newTestManager(t, newFakeClock())
	_, err := NewGate(" ", m, newCaptureChannel())
	require.ErrorIs(t, err, ErrInvalidRecipient)
}

func TestStateMarshalsAsText(t *testing.T) {
	raw, err := json.Marshal(GateStatus{State: StateAwaitingCode})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"state":"awaiting_code"`)
}

func TestGateCustomCodeLength(t *testing.T) {
	m, err := NewManager(Config{
		Store:      NewMemoryStore(),
		Signer:     NewSigner("s"),
		CodeLength: 8,
	})
	require.NoError(t, err)
	ch := newCaptureChannel()
	g, err := NewGate("+15550001111", m, ch, WithCodeLength(m.CodeLength()))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, g.Request(ctx))
	code := ch.last(g.Recipient())
	require.Len(t, code, 8)
	assert.Equal(t, code, SanitizeCode(code), "issued codes survive sanitizing")

	require.ErrorIs(t, g.Submit(ctx, code[:6]), ErrMalformedCode)
	require.NoError(t, g.Submit(ctx, code))
	assert.Equal(t, StateUnlocked, g.State())
}
