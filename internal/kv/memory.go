package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is a process-local Store. Values are stored encoded so callers
// never share memory with the store.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data map[string][]byte
	// Err, when set, is returned by every operation.
	Err error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return false, m.Err
	}
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.data[key] = raw
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Update serializes fn against other Update calls and applies its writes
// only when fn succeeds.
func (m *MemoryStore) Update(ctx context.Context, fn func(tx Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memTx{base: m, staged: make(map[string][]byte), deleted: make(map[string]bool)}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for key := range tx.deleted {
		delete(m.data, key)
	}
	for key, raw := range tx.staged {
		m.data[key] = raw
	}
	return nil
}

type memTx struct {
	base    *MemoryStore
	staged  map[string][]byte
	deleted map[string]bool
}

func (t *memTx) Get(ctx context.Context, key string, dst any) (bool, error) {
	if t.deleted[key] {
		return false, nil
	}
	raw, ok := t.staged[key]
	if !ok {
		return t.base.Get(ctx, key, dst)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (t *memTx) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	delete(t.deleted, key)
	t.staged[key] = raw
	return nil
}

func (t *memTx) Delete(_ context.Context, key string) error {
	delete(t.staged, key)
	t.deleted[key] = true
	return nil
}

func (t *memTx) Close() error { return nil }

// Fail makes every subsequent operation return err; nil restores the store.
func (m *MemoryStore) Fail(err error) {
	m.mu.Lock()
	m.Err = err
	m.mu.Unlock()
}
