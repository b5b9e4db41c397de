// Package docredis stores output documents in Redis.
package docredis

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"riskgraph/internal/logger"
)

// Modes of storing documents.
const (
	// ModeSet overwrites a plain key.
	ModeSet = "set"
	// ModePush appends to a list, for a downstream consumer.
	ModePush = "push"
)

// Config configures the Redis document writer.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	Mode     string
	// TTL expires a SET key; zero keeps it.
	TTL     time.Duration
	Timeout time.Duration
}

// Writer stores serialized documents under a Redis key.
type Writer struct {
	client  *redis.Client
	key     string
	mode    string
	ttl     time.Duration
	timeout time.Duration
}

// NewWriter creates a Redis document writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis output key is required")
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = ModeSet
	case ModeSet, ModePush:
	default:
		return nil, fmt.Errorf("unknown redis output mode %q", cfg.Mode)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	logger.Infof("Document Redis writer initialized: %s (%s)", cfg.Key, cfg.Mode)
	return &Writer{
		client:  client,
		key:     cfg.Key,
		mode:    cfg.Mode,
		ttl:     cfg.TTL,
		timeout: cfg.Timeout,
	}, nil
}

// WriteDocument stores one document.
func (w *Writer) WriteDocument(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var err error
	switch w.mode {
	case ModePush:
		err = w.client.RPush(ctx, w.key, data).Err()
	default:
		err = w.client.Set(ctx, w.key, data, w.ttl).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to store document in redis: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
