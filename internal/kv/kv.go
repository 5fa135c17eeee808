// Package kv is the persistent key/value store behind settings, the break
// ledger and the catch collection. Values are JSON documents.
package kv

import (
	"context"
	"fmt"
	"path/filepath"
)

// Store reads and writes JSON-encoded values by key.
type Store interface {
	// Get decodes the value stored under key into dst. It reports false
	// (and leaves dst untouched) when the key is absent.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Set encodes value and stores it under key, replacing any previous value.
	Set(ctx context.Context, key string, value any) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Atomic is implemented by stores that can run several operations as one
// unit that also excludes writers in other processes.
type Atomic interface {
	// Update runs fn against tx. Writes made through tx are applied together
	// when fn returns nil and discarded otherwise.
	Update(ctx context.Context, fn func(tx Store) error) error
}

// Update runs fn as one unit when store is Atomic, and directly otherwise.
func Update(ctx context.Context, store Store, fn func(tx Store) error) error {
	if a, ok := store.(Atomic); ok {
		return a.Update(ctx, fn)
	}
	return fn(store)
}

// Backend names accepted by Open.
const (
	BackendJSONFile = "jsonfile"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// SQLiteFileName is the database written by the sqlite backend.
const SQLiteFileName = "moyu.db"

// Open returns the Store for backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", BackendJSONFile:
		return NewFileStore(filepath.Join(dir, FileName))
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, SQLiteFileName))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want jsonfile, sqlite or memory)", backend)
	}
}

// Path returns the file backing store, if it has one. Other processes
// write through the same file, so watching it reveals their changes.
func Path(store Store) (string, bool) {
	p, ok := store.(interface{ Path() string })
	if !ok {
		return "", false
	}
	return p.Path(), true
}
