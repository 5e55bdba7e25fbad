// Package ratelimit implements a sliding-window request counter, locally
// or against a shared redis instance. The remote path runs as a single
// evaluated script so two racing callers can never both slip under the
// limit; on any remote failure the check falls back to an equivalent
// local window.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const remoteTimeout = 250 * time.Millisecond

// windowScript trims the window, counts, and conditionally records the
// current event in one atomic evaluation. Returns 1 when the caller is
// over the limit.
var windowScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
local ttl = tonumber(ARGV[5])
local cutoff = now_ms - window_ms

redis.call("ZREMRANGEBYSCORE", key, 0, cutoff)
local count = redis.call("ZCARD", key)
if count >= limit then
  redis.call("EXPIRE", key, ttl)
  return 1
end

redis.call("ZADD", key, now_ms, member)
redis.call("EXPIRE", key, ttl)
return 0
`)

// Limiter counts events per key over a sliding window. Keys are scoped by
// the caller (per-IP, per-owner, per-credential) so one dimension hitting
// its limit never affects another.
type Limiter struct {
	mu        sync.Mutex
	events    map[string][]time.Time
	client    *redis.Client
	keyPrefix string
	log       zerolog.Logger
	now       func() time.Time
}

// New builds a limiter. client may be nil for local-only operation.
func New(client *redis.Client, keyPrefix string, log zerolog.Logger) *Limiter {
	return &Limiter{
		events:    make(map[string][]time.Time),
		client:    client,
		keyPrefix: keyPrefix,
		log:       log,
		now:       time.Now,
	}
}

func (l *Limiter) remoteKey(key string) string {
	return l.keyPrefix + ":ratelimit:" + key
}

// Exceeded records the current event under key and reports whether the
// window now holds more than limit events, counting this one.
func (l *Limiter) Exceeded(ctx context.Context, key string, limit int, window time.Duration) bool {
	if limit < 1 {
		limit = 1
	}
	if window < time.Second {
		window = time.Second
	}

	if l.client != nil {
		exceeded, err := l.exceededRemote(ctx, key, limit, window)
		if err == nil {
			return exceeded
		}
		l.log.Debug().Err(err).Str("key", key).Msg("rate limit remote check failed, using local window")
	}

	return l.exceededLocal(key, limit, window)
}

func (l *Limiter) exceededRemote(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	rctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	nowMS := l.now().UnixMilli()
	member := fmt.Sprintf("%d-%s", nowMS, uuid.NewString())
	ttl := int64(window/time.Second) + 1

	res, err := windowScript.Run(rctx, l.client,
		[]string{l.remoteKey(key)},
		nowMS, window.Milliseconds(), limit, member, ttl,
	).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (l *Limiter) exceededLocal(key string, limit int, window time.Duration) bool {
	now := l.now()
	cutoff := now.Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.events[key][:0]
	for _, ts := range l.events[key] {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= limit {
		l.events[key] = kept
		return true
	}
	l.events[key] = append(kept, now)
	return false
}
