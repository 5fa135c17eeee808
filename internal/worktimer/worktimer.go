// Package worktimer implements the work/break interval state machine.
//
// A Timer accumulates work time one cadence step per Tick while Running.
// When the accumulated time reaches the target it pauses and reports a
// break-due signal exactly once; only Reset starts the next interval.
package worktimer

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/fakeyudi/moyu/internal/clock"
	"github.com/fakeyudi/moyu/internal/events"
)

const (
	DefaultTarget  = time.Hour
	DefaultCadence = time.Minute
)

// BellGlyph replaces the remaining-minutes indicator once the interval is up.
const BellGlyph = "🔔"

// Status is the timer's position in its cycle.
type Status int

const (
	Running Status = iota
	PausedForBreak
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case PausedForBreak:
		return "paused_for_break"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// State is a snapshot of the work cycle.
type State struct {
	Status    Status
	Elapsed   time.Duration
	StartedAt time.Time
	Target    time.Duration
}

// Options configures a Timer. Zero fields take the package defaults.
type Options struct {
	Clock     clock.Clock
	Target    time.Duration
	Cadence   time.Duration
	Publisher events.Publisher
}

// Timer owns the work cycle state. It is safe for concurrent use.
type Timer struct {
	mu        sync.Mutex
	clock     clock.Clock
	cadence   time.Duration
	target    time.Duration
	status    Status
	elapsed   time.Duration
	startedAt time.Time
	pub       events.Publisher
}

// New returns a Running timer with zero elapsed time.
func New(opts Options) *Timer {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Target <= 0 {
		opts.Target = DefaultTarget
	}
	if opts.Cadence <= 0 {
		opts.Cadence = DefaultCadence
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Discard{}
	}
	return &Timer{
		clock:     opts.Clock,
		cadence:   opts.Cadence,
		target:    opts.Target,
		status:    Running,
		startedAt: opts.Clock.Now(),
		pub:       opts.Publisher,
	}
}

// Tick advances the timer by one cadence step and reports whether this tick
// crossed the target. Ticks while paused change nothing and return false.
func (t *Timer) Tick() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != Running {
		return false
	}
	t.elapsed += t.cadence
	if t.elapsed >= t.target {
		t.status = PausedForBreak
		return true
	}
	return false
}

// Reset starts a fresh interval. Calling it repeatedly is harmless.
func (t *Timer) Reset() {
	t.mu.Lock()
	t.status = Running
	t.elapsed = 0
	t.startedAt = t.clock.Now()
	t.mu.Unlock()
	t.publishProgress()
}

// State returns a snapshot.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{
		Status:    t.status,
		Elapsed:   t.elapsed,
		StartedAt: t.startedAt,
		Target:    t.target,
	}
}

// Progress is elapsed/target as a percentage, capped at 100.
func (t *Timer) Progress() float64 {
	s := t.State()
	return progress(s)
}

func progress(s State) float64 {
	p := float64(s.Elapsed) / float64(s.Target) * 100
	return math.Min(p, 100)
}

// Remaining is the work time left in the current interval, never negative.
func (t *Timer) Remaining() time.Duration {
	s := t.State()
	return max(s.Target-s.Elapsed, 0)
}

// RemainingMinutes rounds Remaining to whole minutes.
func (t *Timer) RemainingMinutes() int {
	return int(math.Round(t.Remaining().Minutes()))
}

// Indicator renders the compact status text: "37m", or a bell at zero.
func (t *Timer) Indicator() string {
	return Indicator(t.RemainingMinutes())
}

// Indicator formats a remaining-minutes count.
func Indicator(minutes int) string {
	if minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return BellGlyph
}

// Run ticks once per cadence until ctx is cancelled. Every tick publishes a
// progress event; a crossing also publishes break-due and calls onDue
// (which may be nil). onDue runs on the timer goroutine.
func (t *Timer) Run(ctx context.Context, onDue func()) error {
	ticker := time.NewTicker(t.cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			due := t.Tick()
			t.publishProgress()
			if due {
				t.pub.Publish(events.Event{Type: events.TypeBreakDue})
				if onDue != nil {
					onDue()
				}
			}
		}
	}
}

func (t *Timer) publishProgress() {
	s := t.State()
	t.pub.Publish(events.Event{
		Type: events.TypeTimerProgress,
		Data: events.TimerProgress{
			Percent:          progress(s),
			RemainingMinutes: int(math.Round(max(s.Target-s.Elapsed, 0).Minutes())),
			Paused:           s.Status == PausedForBreak,
		},
	})
}
