package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	goredis "github.com/redis/go-redis/v9"
)

// ErrNotFound is what Get returns for an absent key
var ErrNotFound = goredis.Nil

// Config holds the connection settings for a Redis server
type Config struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Database int32  `mapstructure:"database"`
	Password string `mapstructure:"password"`
}

// Cache is a Redis-backed cache instrumented with OpenTelemetry
type Cache struct {
	client *goredis.Client
}

// NewCache connects to Redis and verifies the connection with PING
func NewCache(ctx context.Context, cfg *Config) (*Cache, error) {
	if cfg == nil || cfg.Host == "" || cfg.Port == "" {
		return nil, errors.New("redis: host and port are required")
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		DB:       int(cfg.Database),
		Password: cfg.Password,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to instrument redis metrics: %w", err)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{client: client}, nil
}

func (c *Cache) Get(ctx context.Context, key string) (interface{}, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores value; a negative expiration means the key never expires
func (c *Cache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if expiration < 0 {
		expiration = 0
	}
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *Cache) GetByPattern(ctx context.Context, pattern string) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := c.client.Get(ctx, key).Result()
		if errors.Is(err, goredis.Nil) {
			// expired between SCAN and GET
			continue
		}
		if err != nil {
			return nil, err
		}
		result[key] = val
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Close releases the underlying connection pool
func (c *Cache) Close() error {
	return c.client.Close()
}
