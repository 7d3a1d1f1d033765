package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tesseract-hub/commerce-service/internal/services"
)

const usageSnapshotKeyPrefix = "commerce:usage:"

// Client wraps the Redis connection for display-only caching. Quota
// enforcement never reads from here.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration
type Config struct {
	Addr     string
	Password string
	DB       int
}

// DefaultConfig returns the default Redis configuration from environment
func DefaultConfig() *Config {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	db := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsed, err := strconv.Atoi(dbStr); err == nil {
			db = parsed
		}
	}
	return &Config{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}
}

// NewClient creates a new Redis client and verifies connectivity
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	log.Printf("[Redis] Connected successfully to %s", cfg.Addr)
	return &Client{rdb: rdb}, nil
}

// GetUsageSnapshot returns the cached usage snapshot, or nil on miss
func (c *Client) GetUsageSnapshot(ctx context.Context, tenantID string) (*services.UsageSnapshot, error) {
	data, err := c.rdb.Get(ctx, usageSnapshotKeyPrefix+tenantID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read usage snapshot: %w", err)
	}

	var snapshot services.UsageSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode cached usage snapshot: %w", err)
	}
	return &snapshot, nil
}

// SetUsageSnapshot caches a usage snapshot with the given TTL
func (c *Client) SetUsageSnapshot(ctx context.Context, tenantID string, snapshot *services.UsageSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode usage snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, usageSnapshotKeyPrefix+tenantID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache usage snapshot: %w", err)
	}
	return nil
}

// InvalidateUsageSnapshot drops the cached snapshot after a mutation
func (c *Client) InvalidateUsageSnapshot(ctx context.Context, tenantID string) error {
	if err := c.rdb.Del(ctx, usageSnapshotKeyPrefix+tenantID).Err(); err != nil {
		return fmt.Errorf("failed to invalidate usage snapshot: %w", err)
	}
	return nil
}

// Ping verifies connectivity for health checks
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
