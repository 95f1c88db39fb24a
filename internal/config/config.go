package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	NATSURL     string
	FeedSubject string
	FeedName    string
	DatabaseURL string
	RedisAddr   string
	MetricsAddr string

	BatchSize         int
	BatchTimeout      time.Duration
	BufferCapacity    int
	Parallelism       int
	DrainTimeout      time.Duration
	AggregateInterval time.Duration
}

// Load loads the configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cfg := &Config{
		NATSURL:     envOrDefault("NATS_URL", "nats://nats:4222"),
		FeedSubject: envOrDefault("FEED_SUBJECT", "spots.raw"),
		FeedName:    envOrDefault("FEED_NAME", "spot-feed"),
		DatabaseURL: databaseURL,
		RedisAddr:   envOrDefault("REDIS_ADDR", "redis:6379"),
		MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
	}

	var err error
	if cfg.BatchSize, err = envInt("BATCH_SIZE", 50); err != nil {
		return nil, err
	}
	if cfg.BufferCapacity, err = envInt("BUFFER_CAPACITY", 1000); err != nil {
		return nil, err
	}
	if cfg.Parallelism, err = envInt("PARALLELISM", 4); err != nil {
		return nil, err
	}
	if cfg.BatchTimeout, err = envDuration("BATCH_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.DrainTimeout, err = envDuration("DRAIN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.AggregateInterval, err = envDuration("AGGREGATE_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return def, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
