package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type payload struct {
	Value string `json:"value"`
}

func newTestCache(now *time.Time) *TimedCache {
	c := New(nil, "test", zerolog.Nop())
	c.now = func() time.Time { return *now }
	return c
}

func TestCacheSetGet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(&now)

	c.Set(ctx, "alice:summary:2026-03", payload{Value: "march"}, 30*time.Second)

	var got payload
	assert.True(t, c.Get(ctx, "alice:summary:2026-03", &got))
	assert.Equal(t, "march", got.Value)

	// Miss on unknown key
	assert.False(t, c.Get(ctx, "alice:summary:2026-04", &got))
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(&now)

	c.Set(ctx, "alice:ledger:x", payload{Value: "v"}, 30*time.Second)

	var got payload
	now = now.Add(29 * time.Second)
	assert.True(t, c.Get(ctx, "alice:ledger:x", &got))

	now = now.Add(2 * time.Second)
	assert.False(t, c.Get(ctx, "alice:ledger:x", &got))
}

func TestCacheMinimumTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(&now)

	// Sub-second TTLs are raised to one second rather than expiring
	// immediately.
	c.Set(ctx, "k", payload{Value: "v"}, 0)

	var got payload
	assert.True(t, c.Get(ctx, "k", &got))
}

func TestCacheInvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(&now)

	c.Set(ctx, "alice:summary:2026-03", payload{Value: "a"}, time.Minute)
	c.Set(ctx, "alice:analysis:2026-03", payload{Value: "b"}, time.Minute)
	c.Set(ctx, "bob:summary:2026-03", payload{Value: "c"}, time.Minute)

	c.InvalidatePrefix(ctx, "alice:")

	var got payload
	assert.False(t, c.Get(ctx, "alice:summary:2026-03", &got))
	assert.False(t, c.Get(ctx, "alice:analysis:2026-03", &got))

	// Other owners are untouched.
	assert.True(t, c.Get(ctx, "bob:summary:2026-03", &got))
	assert.Equal(t, "c", got.Value)
}
