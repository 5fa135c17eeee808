// Package reward decides whether a finished break earns a catch and which
// rarity tier it comes from.
//
// A break of m minutes catches something with probability
// min(0.30 + 0.01*m, 0.60). A catch draws a tier by weight among the tiers
// whose minimum duration the break has reached.
package reward

import "math/rand/v2"

const (
	BaseChance      = 0.30
	ChancePerMinute = 0.01
	MaxChance       = 0.60
)

// Tier is one rarity bucket of the catch table.
type Tier struct {
	Rarity     string  `json:"rarity"`
	Glyph      string  `json:"glyph"`
	Name       string  `json:"name"`
	Weight     int     `json:"weight"`
	MinMinutes float64 `json:"min_minutes"`
}

// DefaultTiers is the catch table in draw order. The first tier has no
// minimum so every catch has at least one candidate.
var DefaultTiers = []Tier{
	{Rarity: "common", Glyph: "🐟", Name: "minnow", Weight: 60, MinMinutes: 0},
	{Rarity: "rare", Glyph: "🐠", Name: "goldfish", Weight: 25, MinMinutes: 5},
	{Rarity: "epic", Glyph: "🐡", Name: "pufferfish", Weight: 12, MinMinutes: 15},
	{Rarity: "legendary", Glyph: "🦈", Name: "shark", Weight: 3, MinMinutes: 30},
}

// Source yields uniform draws in [0, 1).
type Source interface {
	Float64() float64
}

// Reward is the outcome of a successful catch.
type Reward struct {
	Rarity          string  `json:"rarity"`
	Glyph           string  `json:"glyph"`
	Name            string  `json:"name"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// CatchChance is the probability that a break of durationSeconds catches
// anything. Negative durations count as zero.
func CatchChance(durationSeconds float64) float64 {
	minutes := max(durationSeconds, 0) / 60
	return min(BaseChance+minutes*ChancePerMinute, MaxChance)
}

// Resolver draws rewards from a fixed tier table.
type Resolver struct {
	tiers []Tier
	src   Source
}

// NewResolver returns a Resolver over tiers drawing from src. A nil src uses
// the process-wide generator; a nil tiers uses DefaultTiers.
func NewResolver(tiers []Tier, src Source) *Resolver {
	if tiers == nil {
		tiers = DefaultTiers
	}
	if src == nil {
		src = globalSource{}
	}
	return &Resolver{tiers: tiers, src: src}
}

// Tiers returns the table the resolver draws from.
func (r *Resolver) Tiers() []Tier {
	return r.tiers
}

// Resolve evaluates a single break. It reports false when nothing is caught.
func (r *Resolver) Resolve(durationSeconds float64) (Reward, bool) {
	minutes := max(durationSeconds, 0) / 60

	if r.src.Float64() > CatchChance(durationSeconds) {
		return Reward{}, false
	}

	eligible := Eligible(r.tiers, minutes)
	if len(eligible) == 0 {
		return Reward{}, false
	}

	total := 0
	for _, t := range eligible {
		total += t.Weight
	}

	roll := r.src.Float64() * float64(total)
	selected := eligible[0]
	for _, t := range eligible {
		roll -= float64(t.Weight)
		if roll <= 0 {
			selected = t
			break
		}
	}

	return Reward{
		Rarity:          selected.Rarity,
		Glyph:           selected.Glyph,
		Name:            selected.Name,
		DurationSeconds: durationSeconds,
	}, true
}

// Eligible returns the tiers unlocked by a break of minutes, in table order.
func Eligible(tiers []Tier, minutes float64) []Tier {
	out := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		if t.MinMinutes <= minutes {
			out = append(out, t)
		}
	}
	return out
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }
