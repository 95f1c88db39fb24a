package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/n1fdx/spotstream/internal/types"
	"github.com/redis/go-redis/v9"
)

// activityKey holds the latest full band activity map. A single key keeps
// readers from ever observing a half-updated cycle.
const activityKey = "bandactivity:current"

// activityTTL expires a stale snapshot if the aggregator stops running.
const activityTTL = 10 * time.Minute

// RedisClientInterface defines the Redis operations used by our client
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Client manages Redis connections and operations
type Client struct {
	client RedisClientInterface
}

// New creates a new Redis client
func New(addr string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// NewWithClient creates a new Redis client with a custom RedisClientInterface (useful for testing)
func NewWithClient(client RedisClientInterface) *Client {
	return &Client{client: client}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// PublishBandActivity replaces the cached activity snapshot with the given map.
func (c *Client) PublishBandActivity(ctx context.Context, activity map[string]types.BandActivity) error {
	data, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal band activity: %w", err)
	}

	return c.client.Set(ctx, activityKey, data, activityTTL).Err()
}

// GetBandActivity retrieves the latest activity snapshot, or nil when none is cached.
func (c *Client) GetBandActivity(ctx context.Context) (map[string]types.BandActivity, error) {
	data, err := c.client.Get(ctx, activityKey).Bytes()
	if err == redis.Nil {
		return nil, nil // No snapshot yet
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get band activity: %w", err)
	}

	var activity map[string]types.BandActivity
	if err := json.Unmarshal(data, &activity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal band activity: %w", err)
	}

	return activity, nil
}

// DeleteBandActivity removes the cached activity snapshot.
func (c *Client) DeleteBandActivity(ctx context.Context) error {
	return c.client.Del(ctx, activityKey).Err()
}
