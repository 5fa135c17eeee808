package reward

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fakeyudi/moyu/internal/kv"
)

// KeyCollection stores every catch ever made.
const KeyCollection = "fish"

// Catch is a reward kept in the collection.
type Catch struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Glyph           string    `json:"glyph"`
	Rarity          string    `json:"rarity"`
	CaughtAt        time.Time `json:"caught_at"`
	SessionDuration float64   `json:"session_duration"`
}

// NewCatch turns a resolved reward into a collection entry.
func NewCatch(r Reward, at time.Time) Catch {
	return Catch{
		ID:              uuid.NewString(),
		Name:            r.Name,
		Glyph:           r.Glyph,
		Rarity:          r.Rarity,
		CaughtAt:        at,
		SessionDuration: r.DurationSeconds,
	}
}

// Collection is the persisted list of catches, oldest first.
type Collection struct {
	mu    sync.Mutex
	store kv.Store
}

func NewCollection(store kv.Store) *Collection {
	return &Collection{store: store}
}

// Add appends catch to the collection.
func (c *Collection) Add(ctx context.Context, catch Catch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return kv.Update(ctx, c.store, func(tx kv.Store) error {
		var all []Catch
		if _, err := tx.Get(ctx, KeyCollection, &all); err != nil {
			return fmt.Errorf("reading catches: %w", err)
		}
		all = append(all, catch)
		if err := tx.Set(ctx, KeyCollection, all); err != nil {
			return fmt.Errorf("writing catches: %w", err)
		}
		return nil
	})
}

// List returns every catch, oldest first.
func (c *Collection) List(ctx context.Context) ([]Catch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var all []Catch
	if _, err := c.store.Get(ctx, KeyCollection, &all); err != nil {
		return nil, fmt.Errorf("reading catches: %w", err)
	}
	return all, nil
}

// RarityCount is the number of catches of one rarity.
type RarityCount struct {
	Tier  Tier
	Count int
}

// CountByRarity tallies catches per tier, in the order of tiers. Catches
// whose rarity is not in tiers are ignored.
func CountByRarity(catches []Catch, tiers []Tier) []RarityCount {
	counts := make(map[string]int, len(tiers))
	for _, c := range catches {
		counts[c.Rarity]++
	}
	out := make([]RarityCount, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, RarityCount{Tier: t, Count: counts[t.Rarity]})
	}
	return out
}
