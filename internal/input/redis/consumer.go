package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Modes of reading documents from Redis.
const (
	// ModeList blocks on a list and yields every pushed document.
	ModeList = "list"
	// ModeKey reads a single document stored under a plain key.
	ModeKey = "key"
)

// ErrKeyNotFound is returned in key mode when the document key is absent.
var ErrKeyNotFound = errors.New("redis key not found")

// Config configures the Redis consumer.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	Mode         string
	BlockTimeout time.Duration
}

// Consumer reads serialized documents from Redis.
type Consumer struct {
	client       *redis.Client
	key          string
	mode         string
	blockTimeout time.Duration
	done         bool
}

// NewConsumer creates a Redis document consumer.
func NewConsumer(cfg Config) (*Consumer, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = ModeList
	case ModeList, ModeKey:
	default:
		return nil, fmt.Errorf("unknown redis input mode %q", cfg.Mode)
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newConsumer(client, cfg), nil
}

func newConsumer(client *redis.Client, cfg Config) *Consumer {
	return &Consumer{
		client:       client,
		key:          cfg.Key,
		mode:         cfg.Mode,
		blockTimeout: cfg.BlockTimeout,
	}
}

// Pop returns the next document. In list mode it returns (nil, nil) when
// the block timeout expires. In key mode it returns the stored document
// once and io.EOF afterwards; a failed read may be retried, a missing key
// ends the source.
func (c *Consumer) Pop(ctx context.Context) ([]byte, error) {
	if c.mode == ModeKey {
		return c.get(ctx)
	}
	res, err := c.client.BLPop(ctx, c.blockTimeout, c.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

func (c *Consumer) get(ctx context.Context) ([]byte, error) {
	if c.done {
		return nil, io.EOF
	}
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.done = true
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, c.key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read redis key %q: %w", c.key, err)
	}
	c.done = true
	return data, nil
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	return c.client.Close()
}
