package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fakeyudi/moyu/internal/kv"
)

// Keys owned by the Ledger.
const (
	KeyHistory = "breakHistory"
	KeyTotal   = "totalLoafingSeconds"
)

// ErrStorageUnavailable wraps every failure of the backing store.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Ledger is the append-only record of completed breaks, newest first, plus a
// running total of break seconds kept as its own counter.
type Ledger struct {
	mu          sync.Mutex
	store       kv.Store
	maxSessions int
}

// NewLedger returns a Ledger over store. When maxSessions is positive the
// stored history is trimmed to that many records; the total is unaffected.
func NewLedger(store kv.Store, maxSessions int) *Ledger {
	return &Ledger{store: store, maxSessions: maxSessions}
}

// Append records s at the head of the history and adds its duration to the
// running total. Both values are read before either is written, and the
// whole unit runs under the store's lock, so a failed read leaves the ledger
// untouched and writers in other processes cannot lose each other's records.
func (l *Ledger) Append(ctx context.Context, s BreakSession) error {
	if s.DurationSeconds < 0 {
		return fmt.Errorf("break %s has negative duration %v", s.ID, s.DurationSeconds)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.update(ctx, func(tx kv.Store) error {
		history, err := load(ctx, tx)
		if err != nil {
			return err
		}
		total, err := readTotal(ctx, tx)
		if err != nil {
			return err
		}

		history = append([]BreakSession{s}, history...)
		if l.maxSessions > 0 && len(history) > l.maxSessions {
			history = history[:l.maxSessions]
		}
		if err := tx.Set(ctx, KeyHistory, history); err != nil {
			return fmt.Errorf("%w: writing history: %v", ErrStorageUnavailable, err)
		}
		if err := tx.Set(ctx, KeyTotal, total+s.DurationSeconds); err != nil {
			return fmt.Errorf("%w: writing total: %v", ErrStorageUnavailable, err)
		}
		return nil
	})
}

// TotalAccumulatedSeconds returns the sum of the durations of every session
// ever appended.
func (l *Ledger) TotalAccumulatedSeconds(ctx context.Context) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return readTotal(ctx, l.store)
}

// All returns the stored history, newest first.
func (l *Ledger) All(ctx context.Context) ([]BreakSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return load(ctx, l.store)
}

// SessionsSince returns the sessions whose StartedAt is at or after t,
// newest first.
func (l *Ledger) SessionsSince(ctx context.Context, t time.Time) ([]BreakSession, error) {
	all, err := l.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []BreakSession
	for _, s := range all {
		if !s.StartedAt.Before(t) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Clear removes the history and resets the total.
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.update(ctx, func(tx kv.Store) error {
		if err := tx.Delete(ctx, KeyHistory); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		if err := tx.Delete(ctx, KeyTotal); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return nil
	})
}

// update runs fn through kv.Update and makes sure every failure, including
// the store's own locking and commit errors, wraps ErrStorageUnavailable.
func (l *Ledger) update(ctx context.Context, fn func(tx kv.Store) error) error {
	err := kv.Update(ctx, l.store, fn)
	if err != nil && !errors.Is(err, ErrStorageUnavailable) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}

func load(ctx context.Context, store kv.Store) ([]BreakSession, error) {
	var history []BreakSession
	if _, err := store.Get(ctx, KeyHistory, &history); err != nil {
		return nil, fmt.Errorf("%w: reading history: %v", ErrStorageUnavailable, err)
	}
	return history, nil
}

func readTotal(ctx context.Context, store kv.Store) (float64, error) {
	var total float64
	if _, err := store.Get(ctx, KeyTotal, &total); err != nil {
		return 0, fmt.Errorf("%w: reading total: %v", ErrStorageUnavailable, err)
	}
	return total, nil
}
