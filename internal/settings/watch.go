package settings

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fakeyudi/moyu/internal/kv"
	"github.com/fakeyudi/moyu/internal/session"
)

// ErrNotWatchable is returned by Watch for stores without a backing file.
var ErrNotWatchable = errors.New("store has no file to watch")

// DefaultDebounce coalesces the burst of events one atomic write produces.
const DefaultDebounce = 150 * time.Millisecond

// Snapshot is the shared state other processes may change under the daemon.
type Snapshot struct {
	Settings Settings
	// Active is nil when no explicit break is running.
	Active *session.ActiveBreak
}

// LoadSnapshot reads settings and the active break.
func LoadSnapshot(ctx context.Context, store kv.Store) (Snapshot, error) {
	s, err := Load(ctx, store)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Settings: s}
	active, err := session.LoadActive(ctx, store)
	switch {
	case err == nil:
		snap.Active = &active
	case !errors.Is(err, session.ErrNoActiveBreak):
		return Snapshot{}, err
	}
	return snap, nil
}

// Watch reloads a Snapshot whenever the store's file changes and passes it
// to onChange, until ctx is cancelled. The directory is watched rather than
// the file because atomic writes replace the file.
func Watch(ctx context.Context, store kv.Store, debounce time.Duration, onChange func(Snapshot)) error {
	path, ok := kv.Path(store)
	if !ok {
		return ErrNotWatchable
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	base := filepath.Base(path)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Temp files are renamed onto the document; sqlite also
			// touches its -wal and -journal siblings. The lock file never
			// carries data.
			name := filepath.Base(event.Name)
			if !strings.HasPrefix(name, base) || strings.HasSuffix(name, kv.LockSuffix) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}

		case <-timer.C:
			snap, err := LoadSnapshot(ctx, store)
			if err != nil {
				continue // mid-write or unreadable; the next event retries
			}
			onChange(snap)

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; continue watching.
		}
	}
}
