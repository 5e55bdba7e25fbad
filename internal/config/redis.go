package config

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SetupRedis connects to the shared store when a URL is configured.
// Returns nil when no URL is set or the instance is unreachable; callers
// treat a nil client as "run in-process only".
func SetupRedis(cfg *Config, log zerolog.Logger) *redis.Client {
	if cfg.Redis.URL == "" {
		return nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Warn().Err(err).Msg("invalid REDIS_URL, running without shared store")
		return nil
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, running without shared store")
		client.Close()
		return nil
	}

	log.Info().Str("prefix", cfg.Redis.Prefix).Msg("connected to redis")
	return client
}
