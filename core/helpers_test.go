package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T, clock *fakeClock) (*Manager, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	m, err := NewManager(Config{
		Store:  store,
		Signer: NewSigner("test-secret"),
		Now:    clock.Now,
	})
	require.NoError(t, err)
	return m, store
}

// captureChannel records every code it is asked to deliver.
type captureChannel struct {
	mu    sync.Mutex
	codes map[string][]string
	err   error
	block chan struct{}
}

func newCaptureChannel() *captureChannel {
	return &captureChannel{codes: make(map[string][]string)}
}

func (c *captureChannel) Send(ctx context.Context, recipient, code string) error {
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.codes[recipient] = append(c.codes[recipient], code)
	return nil
}

func (c *captureChannel) last(recipient string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	codes := c.codes[recipient]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

// wrongCode returns a code of the same length that differs from code.
func wrongCode(code string) string {
	b := []byte(code)
	if b[0] == '9' {
		b[0] = '0'
	} else {
		b[0]++
	}
	return string(b)
}
