package kv_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"pgregory.net/rapid"

	"github.com/fakeyudi/moyu/internal/kv"
)

type sample struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags"`
}

// backends opens every persistent backend under a fresh temp dir.
func backends(t *testing.T) map[string]kv.Store {
	t.Helper()
	out := map[string]kv.Store{"memory": kv.NewMemoryStore()}
	for _, name := range []string{kv.BackendJSONFile, kv.BackendSQLite} {
		s, err := kv.Open(name, t.TempDir())
		if err != nil {
			t.Fatalf("Open(%s): %v", name, err)
		}
		t.Cleanup(func() { s.Close() })
		out[name] = s
	}
	return out
}

// Feature: moyu, Property: store round-trip
func TestStoreRoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rapid.Check(t, func(rt *rapid.T) {
				key := rapid.StringMatching(`[a-zA-Z]{1,12}`).Draw(rt, "key")
				want := sample{
					Name:  rapid.StringMatching(`[a-zA-Z0-9 ]{0,40}`).Draw(rt, "name"),
					Count: rapid.IntRange(-1000, 1000).Draw(rt, "count"),
					Tags:  rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,8}`), 0, 5).Draw(rt, "tags"),
				}
				ctx := context.Background()
				if err := store.Set(ctx, key, want); err != nil {
					rt.Fatalf("Set: %v", err)
				}
				var got sample
				ok, err := store.Get(ctx, key, &got)
				if err != nil || !ok {
					rt.Fatalf("Get: ok=%v err=%v", ok, err)
				}
				if got.Name != want.Name || got.Count != want.Count || len(got.Tags) != len(want.Tags) {
					rt.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
				}
				for i := range want.Tags {
					if got.Tags[i] != want.Tags[i] {
						rt.Fatalf("Tags[%d]: got %q, want %q", i, got.Tags[i], want.Tags[i])
					}
				}
			})
		})
	}
}

func TestStoreMissingAndDelete(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var v int
			ok, err := store.Get(ctx, "absent", &v)
			if err != nil || ok {
				t.Fatalf("Get(absent): ok=%v err=%v", ok, err)
			}

			if err := store.Set(ctx, "n", 7); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := store.Delete(ctx, "n"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := store.Delete(ctx, "n"); err != nil {
				t.Fatalf("second Delete: %v", err)
			}
			ok, err = store.Get(ctx, "n", &v)
			if err != nil || ok {
				t.Fatalf("Get after Delete: ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := kv.NewFileStore(filepath.Join(dir, kv.FileName))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := s.Set(context.Background(), "k", i); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileStoreCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, kv.FileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := kv.NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	var v int
	if _, err := s.Get(context.Background(), "k", &v); err == nil {
		t.Fatal("expected parse error for corrupt store, got nil")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := kv.Open("redis", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "unknown storage backend") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}

func TestMemoryStoreFail(t *testing.T) {
	m := kv.NewMemoryStore()
	boom := os.ErrPermission
	m.Fail(boom)
	if err := m.Set(context.Background(), "k", 1); err != boom {
		t.Fatalf("Set: got %v, want %v", err, boom)
	}
	m.Fail(nil)
	if err := m.Set(context.Background(), "k", 1); err != nil {
		t.Fatalf("Set after recovery: %v", err)
	}
}

func TestPath(t *testing.T) {
	dir := t.TempDir()
	fs, err := kv.Open(kv.BackendJSONFile, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer fs.Close()
	if p, ok := kv.Path(fs); !ok || p != filepath.Join(dir, kv.FileName) {
		t.Errorf("jsonfile path: %q %v", p, ok)
	}

	db, err := kv.Open(kv.BackendSQLite, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if p, ok := kv.Path(db); !ok || p != filepath.Join(dir, kv.SQLiteFileName) {
		t.Errorf("sqlite path: %q %v", p, ok)
	}

	if _, ok := kv.Path(kv.NewMemoryStore()); ok {
		t.Error("memory store should have no path")
	}
}

func TestUpdateDiscardsWritesOnError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Set(ctx, "a", 1); err != nil {
				t.Fatalf("Set: %v", err)
			}
			err := kv.Update(ctx, store, func(tx kv.Store) error {
				if err := tx.Set(ctx, "a", 2); err != nil {
					return err
				}
				if err := tx.Set(ctx, "b", 3); err != nil {
					return err
				}
				var a int
				if ok, err := tx.Get(ctx, "a", &a); err != nil || !ok || a != 2 {
					t.Errorf("read inside update: a=%d ok=%v err=%v", a, ok, err)
				}
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("Update: got %v, want %v", err, boom)
			}
			var a int
			if ok, err := store.Get(ctx, "a", &a); err != nil || !ok || a != 1 {
				t.Errorf("a after failed update: %d ok=%v err=%v", a, ok, err)
			}
			var b int
			if ok, _ := store.Get(ctx, "b", &b); ok {
				t.Errorf("b should not exist after failed update, got %d", b)
			}
		})
	}
}

// Two stores on one path stand in for the daemon and a one-shot command
// writing at the same time.
func TestConcurrentUpdatesAcrossStores(t *testing.T) {
	const perWriter = 25
	for _, backend := range []string{kv.BackendJSONFile, kv.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			var stores []kv.Store
			for i := 0; i < 2; i++ {
				s, err := kv.Open(backend, dir)
				if err != nil {
					t.Fatalf("Open: %v", err)
				}
				t.Cleanup(func() { s.Close() })
				stores = append(stores, s)
			}

			ctx := context.Background()
			var wg sync.WaitGroup
			errs := make(chan error, len(stores)*perWriter)
			for w, s := range stores {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						err := kv.Update(ctx, s, func(tx kv.Store) error {
							var items []string
							if _, err := tx.Get(ctx, "items", &items); err != nil {
								return err
							}
							items = append(items, fmt.Sprintf("%d-%d", w, i))
							return tx.Set(ctx, "items", items)
						})
						if err != nil {
							errs <- err
						}
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Fatalf("Update: %v", err)
			}

			var items []string
			if _, err := stores[0].Get(ctx, "items", &items); err != nil {
				t.Fatalf("Get: %v", err)
			}
			if len(items) != len(stores)*perWriter {
				t.Fatalf("lost updates: got %d items, want %d", len(items), len(stores)*perWriter)
			}
		})
	}
}
