package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/redhat-data-and-ai/userpool/pkg/cache"
	"github.com/redhat-data-and-ai/userpool/pkg/config"
	"github.com/redhat-data-and-ai/userpool/pkg/logger"
	"github.com/redhat-data-and-ai/userpool/pkg/store"
	"github.com/redhat-data-and-ai/userpool/pkg/store/sqlitestore"
	"github.com/redhat-data-and-ai/userpool/pkg/userpool"
)

// newDataStoreFactory builds the CreateDataStore for the configured backend
// The returned close func releases backend resources and is never nil
func newDataStoreFactory(ctx context.Context, cfg *config.AppConfig) (store.CreateDataStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Backend {
	case store.BackendFile:
		if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory %q: %w", cfg.Store.DataDir, err)
		}
		return store.NewFileFactory(cfg.Store.DataDir), noop, nil

	case store.BackendCache:
		c, err := cache.New(ctx, &cfg.Cache)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create cache: %w", err)
		}
		return store.NewCacheFactory(c), noop, nil

	case store.BackendSQLite:
		db, err := sqlitestore.OpenDB(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db.Factory(), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

// openPool opens the configured pool; callers must invoke the returned close func
func openPool(ctx context.Context, cfg *config.AppConfig) (*userpool.Pool, func() error, error) {
	options, err := cfg.PoolOptions()
	if err != nil {
		return nil, nil, err
	}

	create, closeFn, err := newDataStoreFactory(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	pool, err := userpool.New(ctx, options, create, userpool.WithPoolID(cfg.Pool.ID))
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}

	logger.Logger(ctx).WithFields(logrus.Fields{
		"backend": cfg.Store.Backend,
		"pool":    pool.ID(),
	}).Info("opened user pool")
	return pool, closeFn, nil
}
