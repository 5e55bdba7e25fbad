package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port int
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	DBName     string
	TestDBName string // Separate database for testing
	SSLMode    string
	PoolMax    int
	PoolIdle   int
}

// RedisConfig holds the optional shared-store configuration. An empty URL
// means cache and rate limiting run in-process only.
type RedisConfig struct {
	URL    string
	Prefix string
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret string
}

// CacheConfig holds the TTLs for cached aggregates.
type CacheConfig struct {
	LedgerTTL  time.Duration
	SummaryTTL time.Duration
}

// RateLimitConfig bounds the public endpoints per client key.
type RateLimitConfig struct {
	PublicLimit  int
	PublicWindow time.Duration
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvAsInt("DB_PORT", 5432),
			Username:   getEnv("DB_USERNAME", "postgres"),
			Password:   getEnv("DB_PASSWORD", "password"),
			DBName:     getEnv("DB_NAME", "cashflow"),
			TestDBName: getEnv("TEST_DB_NAME", ""),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			PoolMax:    getEnvAsInt("DB_POOL_MAX", 25),
			PoolIdle:   getEnvAsInt("DB_POOL_IDLE", 5),
		},
		Redis: RedisConfig{
			URL:    getEnv("REDIS_URL", ""),
			Prefix: getEnv("REDIS_PREFIX", "cashflow"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "your-secret-key-here"),
		},
		Cache: CacheConfig{
			LedgerTTL:  getEnvAsDuration("CACHE_LEDGER_TTL", 30*time.Second),
			SummaryTTL: getEnvAsDuration("CACHE_SUMMARY_TTL", 60*time.Second),
		},
		RateLimit: RateLimitConfig{
			PublicLimit:  getEnvAsInt("RATE_LIMIT_PUBLIC", 120),
			PublicWindow: getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
