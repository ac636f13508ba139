package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redhat-data-and-ai/userpool/pkg/cache"
)

func setupCacheStore(t *testing.T) (*CacheStore, cache.Cache) {
	t.Helper()
	c, err := cache.New(context.Background(), &cache.Config{Driver: "memory"})
	require.NoError(t, err)
	s, err := OpenCached(context.Background(), c, "local", poolDefaults())
	require.NoError(t, err)
	return s, c
}

func TestOpenCached_Validation(t *testing.T) {
	_, err := OpenCached(testContext(t), nil, "local", nil)
	assert.Error(t, err)

	c, err := cache.New(testContext(t), &cache.Config{})
	require.NoError(t, err)
	_, err = OpenCached(testContext(t), c, "a/b", nil)
	assert.Error(t, err)
}

func TestCacheStore_StoredUnderPrefixedKey(t *testing.T) {
	ctx := testContext(t)
	_, c := setupCacheStore(t)

	val, err := c.Get(ctx, "datastore:local")
	require.NoError(t, err)
	assert.JSONEq(t, `{"Options":{"UsernameAttributes":[]},"Users":{}}`, val.(string))
}

func TestCacheStore_CorruptData(t *testing.T) {
	tests := []struct {
		Name  string
		Value interface{}
	}{
		{Name: "invalid JSON", Value: "invalid json{{{"},
		{Name: "not an object", Value: `"just a string"`},
		{Name: "unexpected type", Value: 42},
	}

	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			ctx := testContext(t)
			s, c := setupCacheStore(t)

			require.NoError(t, c.Set(ctx, "datastore:local", tt.Value, cache.NoExpiration))

			_, err := s.GetRoot(ctx)
			assert.True(t, errors.Is(err, ErrCorruptData), "got %v", err)

			_, err = OpenCached(ctx, c, "local", poolDefaults())
			assert.True(t, errors.Is(err, ErrCorruptData), "got %v", err)

			// never silently falls back to defaults
			val, err := c.Get(ctx, "datastore:local")
			require.NoError(t, err)
			assert.Equal(t, tt.Value, val)
		})
	}
}

func TestCacheStore_KeyEvicted(t *testing.T) {
	ctx := testContext(t)
	s, c := setupCacheStore(t)

	require.NoError(t, c.Delete(ctx, "datastore:local"))

	_, err := s.GetRoot(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))
}
