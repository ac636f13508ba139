package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/redhat-data-and-ai/userpool/pkg/cache"
	"github.com/redhat-data-and-ai/userpool/pkg/logger"
	"github.com/redhat-data-and-ai/userpool/pkg/telemetry"
)

// CacheStore keeps the whole document as one JSON string under "datastore:<name>"
// A single cache Set is the atomic replace
// NOTE: the mutex serializes read-modify-write cycles within this handle only
type CacheStore struct {
	mu    sync.Mutex
	name  string
	cache cache.Cache
}

// OpenCached binds a CacheStore to c, storing defaults when the key is absent
func OpenCached(ctx context.Context, c cache.Cache, name string, defaults Document) (*CacheStore, error) {
	if c == nil {
		return nil, errors.New("cache is required")
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	s := &CacheStore{
		name:  name,
		cache: c,
	}

	start := time.Now()
	err := s.init(ctx, defaults)
	telemetry.GetStoreMetrics().Observe(ctx, BackendCache, name, "open", start, err)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CacheStore) init(ctx context.Context, defaults Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.read(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, cache.ErrKeyNotFound) {
		return err
	}

	if defaults == nil {
		defaults = Document{}
	}
	if err := s.write(ctx, defaults); err != nil {
		return err
	}

	logger.Logger(ctx).WithFields(logrus.Fields{
		"store": s.name,
		"key":   s.key(),
	}).Debug("created cached data store with defaults")
	return nil
}

// key returns the prefixed cache key for the document
func (s *CacheStore) key() string {
	return "datastore:" + s.name
}

func (s *CacheStore) Name() string {
	return s.name
}

func (s *CacheStore) GetRoot(ctx context.Context) (Document, error) {
	start := time.Now()
	s.mu.Lock()
	doc, err := s.read(ctx)
	s.mu.Unlock()
	telemetry.GetStoreMetrics().Observe(ctx, BackendCache, s.name, "get", start, err)
	return doc, err
}

func (s *CacheStore) Get(ctx context.Context, path ...string) (interface{}, error) {
	doc, err := s.GetRoot(ctx)
	if err != nil {
		return nil, err
	}
	v, _ := doc.Lookup(path...)
	return v, nil
}

func (s *CacheStore) Set(ctx context.Context, path []string, value interface{}) error {
	value, err := Normalize(value)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.update(ctx, func(doc Document) (Document, bool, error) {
		if len(path) == 0 {
			root, err := ToDocument(value)
			return root, true, err
		}
		return doc, true, doc.Put(path, value)
	})
	telemetry.GetStoreMetrics().Observe(ctx, BackendCache, s.name, "set", start, err)
	return err
}

func (s *CacheStore) Delete(ctx context.Context, path ...string) error {
	if len(path) == 0 {
		return errors.New("path is required")
	}

	start := time.Now()
	err := s.update(ctx, func(doc Document) (Document, bool, error) {
		return doc, doc.Remove(path...), nil
	})
	telemetry.GetStoreMetrics().Observe(ctx, BackendCache, s.name, "delete", start, err)
	return err
}

func (s *CacheStore) update(ctx context.Context, fn func(Document) (Document, bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(ctx)
	if err != nil {
		return err
	}
	doc, changed, err := fn(doc)
	if err != nil || !changed {
		return err
	}
	return s.write(ctx, doc)
}

func (s *CacheStore) read(ctx context.Context) (Document, error) {
	val, err := s.cache.Get(ctx, s.key())
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, fmt.Errorf("failed to get data store from cache: %w", err)
	}

	var raw []byte
	switch v := val.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return nil, fmt.Errorf("%w: unexpected cached value of type %T", ErrCorruptData, val)
	}

	doc, err := DecodeDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cached data store %q: %w", s.name, err)
	}
	return doc, nil
}

func (s *CacheStore) write(ctx context.Context, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := s.cache.Set(ctx, s.key(), string(data), cache.NoExpiration); err != nil {
		return fmt.Errorf("failed to set data store in cache: %w", err)
	}
	return nil
}
