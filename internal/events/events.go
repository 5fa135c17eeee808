// Package events fans presentation updates out to the dashboard, the
// websocket bridge and the CLI. Delivery is at-most-once: a slow subscriber
// loses events instead of stalling the timer or the orchestrator.
package events

import (
	"sync"
	"time"

	"github.com/fakeyudi/moyu/internal/reward"
)

// Event types, also used as the websocket envelope type.
const (
	TypeTimerProgress = "timer_progress"
	TypeBreakDue      = "break_due"
	TypeBreakStarted  = "break_started"
	TypeBreakResult   = "break_result"
	TypeDetector      = "detector"
)

// Event is one presentation update. Data holds one of the payload types below.
type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

// TimerProgress is published on every timer tick.
type TimerProgress struct {
	Percent          float64 `json:"percent"`
	RemainingMinutes int     `json:"remaining_minutes"`
	Paused           bool    `json:"paused"`
}

// BreakStarted is published when a manual or scripted break begins.
type BreakStarted struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
}

// BreakResult is the terminal payload of a finished break.
type BreakResult struct {
	Kind            string         `json:"kind"`
	Label           string         `json:"label"`
	DurationSeconds float64        `json:"duration_seconds"`
	Earned          float64        `json:"earned"`
	Currency        string         `json:"currency,omitempty"`
	Reward          *reward.Reward `json:"reward,omitempty"`
	Recorded        bool           `json:"recorded"`
}

// DetectorState mirrors the detector after a loafing transition.
type DetectorState struct {
	Loafing bool      `json:"loafing"`
	App     string    `json:"app,omitempty"`
	Since   time.Time `json:"since,omitempty"`
}

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Offer performs a non-blocking send.
// It returns true when the value was sent and false when the channel is full
// or already closed.
func Offer[T any](ch chan<- T, value T) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()
	select {
	case ch <- value:
		return true
	default:
		return false
	}
}

// Bus is a fan-out publisher. The zero value is not usable; call NewBus.
type Bus struct {
	mu      sync.Mutex
	nextID  int
	subs    map[int]chan Event
	dropped int
	now     func() time.Time
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event), now: time.Now}
}

// Subscribe registers a subscriber with the given buffer size (DefaultBuffer
// when <= 0). The returned cancel func unregisters and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish offers ev to every subscriber without blocking. A zero At is
// stamped with the current time.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = b.now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		if !Offer(ch, ev) {
			b.dropped++
		}
	}
}

// Dropped reports how many deliveries were lost to full subscribers.
func (b *Bus) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Publisher is the narrow interface components publish through.
type Publisher interface {
	Publish(Event)
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(Event) {}
