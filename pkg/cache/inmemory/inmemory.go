package inmemory

import (
	"context"
	"errors"
	"path"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ErrNotFound is returned by Get for an absent or expired key
var ErrNotFound = errors.New("inmemory: key not found")

// Config holds the go-cache settings, both in seconds
type Config struct {
	DefaultExpiration int32 `mapstructure:"default_expiration"`
	CleanupInterval   int32 `mapstructure:"cleanup_interval"`
}

// Cache is a process-local cache backed by go-cache
type Cache struct {
	c *gocache.Cache
}

// NewCache creates an in-memory cache; a nil config means no default expiry and no janitor
func NewCache(cfg *Config) (*Cache, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.DefaultExpiration < 0 || cfg.CleanupInterval < 0 {
		return nil, errors.New("inmemory: expiration and cleanup interval must not be negative")
	}

	defaultExpiration := gocache.NoExpiration
	if cfg.DefaultExpiration > 0 {
		defaultExpiration = time.Duration(cfg.DefaultExpiration) * time.Second
	}

	return &Cache{
		c: gocache.New(defaultExpiration, time.Duration(cfg.CleanupInterval)*time.Second),
	}, nil
}

func (c *Cache) Get(_ context.Context, key string) (interface{}, error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, ErrNotFound
	}
	return val, nil
}

// Set stores value; a negative expiration never expires and zero uses the default expiration
func (c *Cache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	if expiration < 0 {
		expiration = gocache.NoExpiration
	}
	c.c.Set(key, value, expiration)
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Delete(key)
	return nil
}

// GetByPattern matches keys with shell glob syntax
func (c *Cache) GetByPattern(_ context.Context, pattern string) (map[string]interface{}, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}

	result := make(map[string]interface{})
	for key, item := range c.c.Items() {
		if ok, _ := path.Match(pattern, key); ok {
			result[key] = item.Object
		}
	}
	return result, nil
}
