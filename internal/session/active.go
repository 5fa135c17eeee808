package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fakeyudi/moyu/internal/kv"
)

// KeyActiveBreak holds the explicit break currently in progress, if any.
const KeyActiveBreak = "activeBreak"

var (
	// ErrNoActiveBreak is returned when no explicit break is in progress.
	ErrNoActiveBreak = errors.New("no active break")
	// ErrBreakInProgress is returned when starting a break while one runs.
	ErrBreakInProgress = errors.New("break already in progress")
)

// ActiveBreak is an explicit break that has started but not ended. It is not
// a BreakSession: those only exist once the break is over.
type ActiveBreak struct {
	Kind      Kind      `json:"kind"`
	StartedAt time.Time `json:"started_at"`
}

// StartBreak persists a new active break of kind starting at now. The
// check and the write are one unit, so two callers cannot both start a break.
func StartBreak(ctx context.Context, store kv.Store, kind Kind, now time.Time) (ActiveBreak, error) {
	b := ActiveBreak{Kind: kind, StartedAt: now}
	err := kv.Update(ctx, store, func(tx kv.Store) error {
		if _, err := LoadActive(ctx, tx); err == nil {
			return ErrBreakInProgress
		} else if !errors.Is(err, ErrNoActiveBreak) {
			return err
		}
		if err := tx.Set(ctx, KeyActiveBreak, b); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrBreakInProgress) || errors.Is(err, ErrStorageUnavailable) {
			return ActiveBreak{}, err
		}
		return ActiveBreak{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return b, nil
}

// LoadActive returns the active break or ErrNoActiveBreak.
func LoadActive(ctx context.Context, store kv.Store) (ActiveBreak, error) {
	var b ActiveBreak
	ok, err := store.Get(ctx, KeyActiveBreak, &b)
	if err != nil {
		return ActiveBreak{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !ok || b.StartedAt.IsZero() {
		return ActiveBreak{}, ErrNoActiveBreak
	}
	return b, nil
}

// ClearActive removes the active break marker.
func ClearActive(ctx context.Context, store kv.Store) error {
	if err := store.Delete(ctx, KeyActiveBreak); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
