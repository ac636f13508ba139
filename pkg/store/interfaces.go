package store

import "context"

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_datastore.go -package=mocks

// DataStore is a single persistent JSON document addressed by collection name
// Every call re-reads the backing medium; nothing is cached across calls
type DataStore interface {
	// Name returns the collection name the store was opened with
	Name() string

	// GetRoot returns the whole document as currently persisted
	GetRoot(ctx context.Context) (Document, error)

	// Get returns the value at path, or nil when any segment is absent
	// An empty path returns the whole document
	Get(ctx context.Context, path ...string) (interface{}, error)

	// Set replaces the value at path and persists the whole document atomically
	// Missing intermediate objects are created; an empty path replaces the document
	Set(ctx context.Context, path []string, value interface{}) error

	// Delete removes the value at path; removing an absent path is a no-op
	Delete(ctx context.Context, path ...string) error
}

// CreateDataStore opens (or creates, seeded with defaults) the data store called name
// The physical location is bound by whoever builds the factory
type CreateDataStore func(ctx context.Context, name string, defaults Document) (DataStore, error)
