// Package sqlitestore keeps data store documents as rows of a SQLite database.
//
// Table:
//
//	documents(name, body)  PRIMARY KEY (name)
//
// Each read-modify-write runs in one IMMEDIATE transaction, so writers in
// other processes sharing the database file are serialized by SQLite itself.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/redhat-data-and-ai/userpool/pkg/logger"
	"github.com/redhat-data-and-ai/userpool/pkg/store"
	"github.com/redhat-data-and-ai/userpool/pkg/telemetry"
)

// DB is an open SQLite database holding any number of documents
type DB struct {
	db *sql.DB
}

// OpenDB opens (creating if needed) the database at dbPath; its directory must exist
func OpenDB(dbPath string) (*DB, error) {
	if _, err := os.Stat(filepath.Dir(dbPath)); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}

	// _txlock=immediate takes the write lock at BEGIN, before the document is read
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		name TEXT PRIMARY KEY,
		body TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Factory returns a CreateDataStore opening documents in d
func (d *DB) Factory() store.CreateDataStore {
	return func(ctx context.Context, name string, defaults store.Document) (store.DataStore, error) {
		s, err := d.Open(ctx, name, defaults)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Open binds a Store to the row called name, inserting defaults only when the row is absent
func (d *DB) Open(ctx context.Context, name string, defaults store.Document) (*Store, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}
	if defaults == nil {
		defaults = store.Document{}
	}

	s := &Store{db: d.db, name: name}

	start := time.Now()
	err := s.init(ctx, defaults)
	telemetry.GetStoreMetrics().Observe(ctx, store.BackendSQLite, name, "open", start, err)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Store is one document of a DB
type Store struct {
	db   *sql.DB
	name string
}

var _ store.DataStore = (*Store)(nil)

func (s *Store) init(ctx context.Context, defaults store.Document) error {
	body, err := store.EncodeDocument(defaults)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (name, body) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		s.name, string(body),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize data store %q: %w", s.name, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Logger(ctx).WithField("store", s.name).Debug("created sqlite data store with defaults")
		return nil
	}

	// existing row: validate it like the file backend does
	_, err = s.read(ctx, s.db)
	return err
}

func (s *Store) Name() string {
	return s.name
}

func (s *Store) GetRoot(ctx context.Context) (store.Document, error) {
	start := time.Now()
	doc, err := s.read(ctx, s.db)
	telemetry.GetStoreMetrics().Observe(ctx, store.BackendSQLite, s.name, "get", start, err)
	return doc, err
}

func (s *Store) Get(ctx context.Context, path ...string) (interface{}, error) {
	doc, err := s.GetRoot(ctx)
	if err != nil {
		return nil, err
	}
	v, _ := doc.Lookup(path...)
	return v, nil
}

func (s *Store) Set(ctx context.Context, path []string, value interface{}) error {
	value, err := store.Normalize(value)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.update(ctx, func(doc store.Document) (store.Document, bool, error) {
		if len(path) == 0 {
			root, err := store.ToDocument(value)
			return root, true, err
		}
		return doc, true, doc.Put(path, value)
	})
	telemetry.GetStoreMetrics().Observe(ctx, store.BackendSQLite, s.name, "set", start, err)
	if err == nil {
		logger.Logger(ctx).WithFields(logrus.Fields{
			"store": s.name,
			"path":  path,
		}).Debug("sqlite data store updated")
	}
	return err
}

func (s *Store) Delete(ctx context.Context, path ...string) error {
	if len(path) == 0 {
		return errors.New("path is required")
	}

	start := time.Now()
	err := s.update(ctx, func(doc store.Document) (store.Document, bool, error) {
		return doc, doc.Remove(path...), nil
	})
	telemetry.GetStoreMetrics().Observe(ctx, store.BackendSQLite, s.name, "delete", start, err)
	return err
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *Store) read(ctx context.Context, q querier) (store.Document, error) {
	var body string
	err := q.QueryRowContext(ctx, "SELECT body FROM documents WHERE name = ?", s.name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no document named %q", store.ErrNotFound, s.name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data store %q: %w", s.name, err)
	}

	doc, err := store.DecodeDocument([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse data store %q: %w", s.name, err)
	}
	return doc, nil
}

func (s *Store) update(ctx context.Context, fn func(store.Document) (store.Document, bool, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	doc, err := s.read(ctx, tx)
	if err != nil {
		return err
	}
	doc, changed, err := fn(doc)
	if err != nil || !changed {
		return err
	}

	body, err := store.EncodeDocument(doc)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE documents SET body = ? WHERE name = ?", string(body), s.name); err != nil {
		return fmt.Errorf("failed to write data store %q: %w", s.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit data store %q: %w", s.name, err)
	}
	return nil
}
