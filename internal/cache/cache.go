// Package cache provides the owner-scoped aggregate cache: a process-local
// TTL store, optionally backed by a shared redis instance. The cache is
// best-effort and never a source of truth; every remote failure degrades
// silently to the local store.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// remoteTimeout bounds every round trip to the backing store so an
// unreachable redis can never stall a request.
const remoteTimeout = 250 * time.Millisecond

type localEntry struct {
	expiresAt time.Time
	payload   []byte
}

// localStore is the guaranteed in-process fallback. Expired entries are
// evicted lazily on access.
type localStore struct {
	mu      sync.Mutex
	entries map[string]localEntry
}

func newLocalStore() *localStore {
	return &localStore{entries: make(map[string]localEntry)}
}

func (s *localStore) get(key string, now time.Time) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if now.After(e.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return e.payload, true
}

func (s *localStore) set(key string, payload []byte, ttl time.Duration, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = localEntry{expiresAt: now.Add(ttl), payload: payload}
}

func (s *localStore) deletePrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
}

// TimedCache is the key→value store for expensive aggregates. Values are
// JSON-marshalled so local and remote entries share one representation.
type TimedCache struct {
	local     *localStore
	client    *redis.Client
	keyPrefix string
	log       zerolog.Logger
	now       func() time.Time
}

// New builds a cache. client may be nil for local-only operation;
// keyPrefix namespaces the shared store so several deployments can share
// one redis.
func New(client *redis.Client, keyPrefix string, log zerolog.Logger) *TimedCache {
	return &TimedCache{
		local:     newLocalStore(),
		client:    client,
		keyPrefix: keyPrefix,
		log:       log,
		now:       time.Now,
	}
}

func (c *TimedCache) remoteKey(key string) string {
	return c.keyPrefix + ":cache:" + key
}

// Get loads a cached value into dest. The remote store wins when
// reachable; any remote error or miss falls through to the local store.
func (c *TimedCache) Get(ctx context.Context, key string, dest any) bool {
	if c.client != nil {
		rctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		raw, err := c.client.Get(rctx, c.remoteKey(key)).Bytes()
		cancel()
		if err == nil {
			if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
				return true
			}
		} else if err != redis.Nil {
			c.log.Debug().Err(err).Str("key", key).Msg("cache remote get failed, using local store")
		}
	}

	raw, ok := c.local.get(key, c.now())
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// Set stores a value under a TTL. The remote write happens first and its
// failure is swallowed; the local write always happens.
func (c *TimedCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl < time.Second {
		ttl = time.Second
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("cache value not serializable, skipping")
		return
	}

	if c.client != nil {
		rctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		if err := c.client.Set(rctx, c.remoteKey(key), raw, ttl).Err(); err != nil {
			c.log.Debug().Err(err).Str("key", key).Msg("cache remote set failed")
		}
		cancel()
	}

	c.local.set(key, raw, ttl, c.now())
}

// InvalidatePrefix drops every key starting with prefix, remotely (via a
// scan-and-delete loop) and locally. Called with "{owner}:" after any
// write that could change that owner's cached aggregates.
func (c *TimedCache) InvalidatePrefix(ctx context.Context, prefix string) {
	if c.client != nil {
		rctx, cancel := context.WithTimeout(ctx, 4*remoteTimeout)
		iter := c.client.Scan(rctx, 0, c.remoteKey(prefix)+"*", 200).Iterator()
		var keys []string
		for iter.Next(rctx) {
			keys = append(keys, iter.Val())
			if len(keys) >= 200 {
				c.client.Del(rctx, keys...)
				keys = keys[:0]
			}
		}
		if len(keys) > 0 {
			c.client.Del(rctx, keys...)
		}
		if err := iter.Err(); err != nil {
			c.log.Debug().Err(err).Str("prefix", prefix).Msg("cache remote invalidation incomplete")
		}
		cancel()
	}

	c.local.deletePrefix(prefix)
}
