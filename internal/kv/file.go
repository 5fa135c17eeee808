package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// FileName is the document written by the jsonfile backend.
const FileName = "store.json"

// LockSuffix names the advisory lock file next to the document.
const LockSuffix = ".lock"

const lockRetry = 10 * time.Millisecond

// FileStore keeps every key in one JSON object on disk. Each write rewrites
// the whole document through a temp file and os.Rename, so readers never
// observe a partial write. Writers hold an advisory file lock for the whole
// read-modify-write, so the daemon and one-shot commands cannot lose each
// other's updates.
type FileStore struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

// NewFileStore returns a FileStore at path, creating its directory.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &FileStore{path: path, lock: flock.New(path + LockSuffix)}, nil
}

// Path returns the location of the backing document.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get(_ context.Context, key string, dst any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return false, err
	}
	return (&docTx{doc: doc}).get(key, dst)
}

func (f *FileStore) Set(ctx context.Context, key string, value any) error {
	return f.Update(ctx, func(tx Store) error {
		return tx.Set(ctx, key, value)
	})
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	return f.Update(ctx, func(tx Store) error {
		return tx.Delete(ctx, key)
	})
}

// Update loads the document under the file lock, lets fn change it and
// saves it once if anything changed.
func (f *FileStore) Update(ctx context.Context, fn func(tx Store) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	locked, err := f.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("failed to lock store: %w", err)
	}
	if !locked {
		return errors.New("failed to lock store")
	}
	defer f.lock.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	tx := &docTx{doc: doc}
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.dirty {
		return nil
	}
	return f.save(tx.doc)
}

func (f *FileStore) Close() error { return nil }

// load reads the document. A missing file is an empty document.
func (f *FileStore) load() (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse store %s: %w", f.path, err)
	}
	return doc, nil
}

// save writes doc atomically via a temp file in the same directory.
func (f *FileStore) save(doc map[string]json.RawMessage) (err error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to persist store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "store-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist store: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist store: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist store: %w", err)
	}
	if err = os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to persist store: %w", err)
	}
	return nil
}

// docTx is the in-memory view of the document handed to Update.
type docTx struct {
	doc   map[string]json.RawMessage
	dirty bool
}

func (t *docTx) get(key string, dst any) (bool, error) {
	raw, ok := t.doc[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

func (t *docTx) Get(_ context.Context, key string, dst any) (bool, error) {
	return t.get(key, dst)
}

func (t *docTx) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	t.doc[key] = raw
	t.dirty = true
	return nil
}

func (t *docTx) Delete(_ context.Context, key string) error {
	if _, ok := t.doc[key]; ok {
		delete(t.doc, key)
		t.dirty = true
	}
	return nil
}

func (t *docTx) Close() error { return nil }
