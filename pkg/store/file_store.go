package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/redhat-data-and-ai/userpool/pkg/logger"
	"github.com/redhat-data-and-ai/userpool/pkg/telemetry"
)

// FileStore keeps one document per file
//
// Layout:
//
//	base_path/
//	  local.json    # data store "local"
//	  tenant.json   # data store "tenant"
//
// Writes go to a temporary file in base_path which is renamed over the target,
// so readers only ever see a complete document.
// NOTE: the mutex serializes read-modify-write cycles within this handle only;
// concurrent writers in other processes are not coordinated
type FileStore struct {
	mu   sync.RWMutex
	name string
	dir  string
	path string
}

// Open binds a FileStore to basePath/<name>.json, writing defaults only when the file does not exist
// An existing file is validated and never overwritten
func Open(ctx context.Context, name string, defaults Document, basePath string) (*FileStore, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	info, err := os.Stat(basePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: base path %q does not exist", ErrNotFound, basePath)
		}
		return nil, fmt.Errorf("failed to stat base path %q: %w", basePath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: base path %q is not a directory", ErrNotFound, basePath)
	}

	s := &FileStore{
		name: name,
		dir:  basePath,
		path: filepath.Join(basePath, name+".json"),
	}

	start := time.Now()
	err = s.init(ctx, defaults)
	telemetry.GetStoreMetrics().Observe(ctx, BackendFile, name, "open", start, err)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) init(ctx context.Context, defaults Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.read()
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		if errors.Is(err, ErrCorruptData) {
			logger.Logger(ctx).WithField("path", s.path).WithError(err).Warn("existing data store is corrupt")
		}
		return err
	}

	if defaults == nil {
		defaults = Document{}
	}
	if err := s.write(defaults); err != nil {
		return err
	}

	logger.Logger(ctx).WithFields(logrus.Fields{
		"store": s.name,
		"path":  s.path,
	}).Debug("created data store with defaults")
	return nil
}

func (s *FileStore) Name() string {
	return s.name
}

// Path returns the file backing this store
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) GetRoot(ctx context.Context) (Document, error) {
	start := time.Now()
	s.mu.RLock()
	doc, err := s.read()
	s.mu.RUnlock()
	telemetry.GetStoreMetrics().Observe(ctx, BackendFile, s.name, "get", start, err)
	return doc, err
}

func (s *FileStore) Get(ctx context.Context, path ...string) (interface{}, error) {
	doc, err := s.GetRoot(ctx)
	if err != nil {
		return nil, err
	}
	v, _ := doc.Lookup(path...)
	return v, nil
}

func (s *FileStore) Set(ctx context.Context, path []string, value interface{}) error {
	value, err := Normalize(value)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.update(func(doc Document) (Document, bool, error) {
		if len(path) == 0 {
			root, err := ToDocument(value)
			return root, true, err
		}
		return doc, true, doc.Put(path, value)
	})
	telemetry.GetStoreMetrics().Observe(ctx, BackendFile, s.name, "set", start, err)
	if err != nil {
		return err
	}

	logger.Logger(ctx).WithFields(logrus.Fields{
		"store": s.name,
		"path":  path,
	}).Debug("data store updated")
	return nil
}

func (s *FileStore) Delete(ctx context.Context, path ...string) error {
	if len(path) == 0 {
		return errors.New("path is required")
	}

	start := time.Now()
	err := s.update(func(doc Document) (Document, bool, error) {
		return doc, doc.Remove(path...), nil
	})
	telemetry.GetStoreMetrics().Observe(ctx, BackendFile, s.name, "delete", start, err)
	return err
}

// update runs one read-modify-write cycle under the write lock
// fn reports whether the document changed; unchanged documents are not rewritten
func (s *FileStore) update(fn func(Document) (Document, bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc, changed, err := fn(doc)
	if err != nil || !changed {
		return err
	}
	return s.write(doc)
}

func (s *FileStore) read() (Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, s.path, err)
		}
		return nil, fmt.Errorf("failed to read data store %q: %w", s.path, err)
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse data store %q: %w", s.path, err)
	}
	return doc, nil
}

// write replaces the file atomically; on failure the previous content stays in place
func (s *FileStore) write(doc Document) error {
	data, err := EncodeDocument(doc)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+s.name+".json.tmp-*")
	if err != nil {
		if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: cannot write to %q: %w", ErrNotFound, s.dir, err)
		}
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write data store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync data store: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("failed to set data store permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close data store: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace data store %q: %w", s.path, err)
	}
	committed = true
	return nil
}
