package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redhat-data-and-ai/userpool/pkg/cache/inmemory"
	"github.com/redhat-data-and-ai/userpool/pkg/cache/redis"
)

// NoExpiration keeps a value until it is deleted explicitly
const NoExpiration time.Duration = -1

// ErrKeyNotFound is returned by Get when the key is absent
var ErrKeyNotFound = errors.New("key not found")

// Cache is the key/value contract the cache-backed data store is built on
// Values are written as strings; implementations may return them as string
type Cache interface {
	// Get returns the value stored under key or an error wrapping ErrKeyNotFound
	Get(ctx context.Context, key string) (interface{}, error)

	// Set stores value under key; NoExpiration keeps it until deleted
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error

	// Delete removes key; deleting an absent key is not an error
	Delete(ctx context.Context, key string) error

	// GetByPattern returns every key matching a glob pattern with its value
	GetByPattern(ctx context.Context, pattern string) (map[string]interface{}, error)
}

// Config selects and configures a cache driver
type Config struct {
	Driver   string           `mapstructure:"driver"`
	InMemory *inmemory.Config `mapstructure:"inmemory"`
	Redis    *redis.Config    `mapstructure:"redis"`
}

// New creates a cache for the configured driver ("memory" or "redis")
func New(ctx context.Context, cfg *Config) (Cache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cache config is required")
	}

	switch cfg.Driver {
	case "memory", "inmemory", "":
		c, err := inmemory.NewCache(cfg.InMemory)
		if err != nil {
			return nil, err
		}
		return &adapter{backend: c, miss: inmemory.ErrNotFound}, nil
	case "redis":
		c, err := redis.NewCache(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return &adapter{backend: c, miss: redis.ErrNotFound}, nil
	default:
		return nil, fmt.Errorf("unknown cache driver: %q (supported: memory, redis)", cfg.Driver)
	}
}

// backend is satisfied by the driver packages, which cannot import this package
type backend interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	GetByPattern(ctx context.Context, pattern string) (map[string]interface{}, error)
}

// adapter maps a driver's miss error onto ErrKeyNotFound
type adapter struct {
	backend backend
	miss    error
}

func (a *adapter) Get(ctx context.Context, key string) (interface{}, error) {
	val, err := a.backend.Get(ctx, key)
	if errors.Is(err, a.miss) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return val, err
}

func (a *adapter) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return a.backend.Set(ctx, key, value, expiration)
}

func (a *adapter) Delete(ctx context.Context, key string) error {
	return a.backend.Delete(ctx, key)
}

func (a *adapter) GetByPattern(ctx context.Context, pattern string) (map[string]interface{}, error) {
	return a.backend.GetByPattern(ctx, pattern)
}
