package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redhat-data-and-ai/userpool/pkg/cache"
)

var (
	// ErrNotFound means the backing location is missing or cannot be written
	ErrNotFound = errors.New("data store location not found")

	// ErrCorruptData means the persisted content is not a JSON object
	ErrCorruptData = errors.New("data store content is corrupt")
)

// Backend names, also used as the metrics backend attribute
const (
	BackendFile   = "file"
	BackendCache  = "cache"
	BackendSQLite = "sqlite"
)

// NewFileFactory binds basePath into a CreateDataStore that opens JSON files
func NewFileFactory(basePath string) CreateDataStore {
	return func(ctx context.Context, name string, defaults Document) (DataStore, error) {
		s, err := Open(ctx, name, defaults, basePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// NewCacheFactory returns a CreateDataStore keeping documents in c
func NewCacheFactory(c cache.Cache) CreateDataStore {
	return func(ctx context.Context, name string, defaults Document) (DataStore, error) {
		s, err := OpenCached(ctx, c, name, defaults)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// ValidateName rejects names that would escape the base path or be unusable as a file name
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("data store name is required")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("invalid data store name %q", name)
	}
	return nil
}

// Compile-time interface compliance checks
var (
	_ DataStore = (*FileStore)(nil)
	_ DataStore = (*CacheStore)(nil)
)
