package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BurstThenRefill(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(2, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("yahoo"))
	assert.True(t, l.Allow("yahoo"))
	assert.False(t, l.Allow("yahoo"))
	assert.True(t, l.Allow("other"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("yahoo"))
	assert.False(t, l.Allow("yahoo"))
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := New(1, 0.001)
	require.NoError(t, l.Wait(context.Background(), "k"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx, "k"), context.DeadlineExceeded)
}

func TestLimiter_WaitBlocksUntilRefill(t *testing.T) {
	l := New(1, 50)
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "k"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "k"))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestLimiter_WaitWithoutRefill(t *testing.T) {
	l := New(1, 0)
	require.NoError(t, l.Wait(context.Background(), "k"))
	assert.ErrorIs(t, l.Wait(context.Background(), "k"), ErrExhausted)
}
