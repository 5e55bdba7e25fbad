package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestLimiter(now *time.Time) *Limiter {
	l := New(nil, "test", zerolog.Nop())
	l.now = func() time.Time { return *now }
	return l
}

func TestLimiterAllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)

	for i := 0; i < 5; i++ {
		assert.False(t, l.Exceeded(ctx, "public:ip:1.2.3.4", 5, time.Minute), "request %d should pass", i+1)
	}
	assert.True(t, l.Exceeded(ctx, "public:ip:1.2.3.4", 5, time.Minute))
}

func TestLimiterWindowSlides(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)

	for i := 0; i < 3; i++ {
		assert.False(t, l.Exceeded(ctx, "k", 3, time.Minute))
	}
	assert.True(t, l.Exceeded(ctx, "k", 3, time.Minute))

	// Once the window passes, the key recovers.
	now = now.Add(61 * time.Second)
	assert.False(t, l.Exceeded(ctx, "k", 3, time.Minute))
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)

	assert.False(t, l.Exceeded(ctx, "public:ip:1.2.3.4", 1, time.Minute))
	assert.True(t, l.Exceeded(ctx, "public:ip:1.2.3.4", 1, time.Minute))

	// A different key still has its full budget.
	assert.False(t, l.Exceeded(ctx, "public:ip:5.6.7.8", 1, time.Minute))
}

func TestLimiterClampsInputs(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)

	// Zero limit behaves as one, zero window as one second.
	assert.False(t, l.Exceeded(ctx, "k", 0, 0))
	assert.True(t, l.Exceeded(ctx, "k", 0, 0))

	now = now.Add(1100 * time.Millisecond)
	assert.False(t, l.Exceeded(ctx, "k", 0, 0))
}
