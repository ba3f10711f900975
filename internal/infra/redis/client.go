package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/dashnotifier/internal/core/domain"
	"github.com/vietddude/dashnotifier/internal/infra/storage"
)

// Client stores the state document under a single Redis key.
type Client struct {
	rdb *redis.Client
	key string
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Key      string `yaml:"key"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = "dashnotifier:state"
	}
	return &Client{rdb: rdb, key: key}, nil
}

// Load reads the state key.
func (c *Client) Load(ctx context.Context) (*domain.State, error) {
	data, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewState(), storage.ErrStateMissing
	}
	if err != nil {
		return domain.NewState(), fmt.Errorf("get failed: %w", err)
	}
	return storage.Decode(data)
}

// Save replaces the state key with a single SET.
func (c *Client) Save(ctx context.Context, state *domain.State) error {
	data, err := storage.Encode(state)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
