package events

import (
	"testing"
	"time"
)

func TestOfferNonBlocking(t *testing.T) {
	ch := make(chan int, 1)
	if !Offer(ch, 1) {
		t.Fatal("first offer should succeed")
	}
	if Offer(ch, 2) {
		t.Fatal("offer on a full channel should fail")
	}
	close(ch)
	if Offer(ch, 3) {
		t.Fatal("offer on a closed channel should fail")
	}
}

func TestBusFanOut(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe(4)
	defer cancelA()
	b, cancelB := bus.Subscribe(4)
	defer cancelB()

	bus.Publish(Event{Type: TypeBreakDue})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Type != TypeBreakDue {
				t.Errorf("%s: got type %q", name, ev.Type)
			}
			if ev.At.IsZero() {
				t.Errorf("%s: event not stamped", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: no event", name)
		}
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Publish(Event{Type: TypeTimerProgress})
	bus.Publish(Event{Type: TypeTimerProgress})
	bus.Publish(Event{Type: TypeTimerProgress})

	if got := bus.Dropped(); got != 2 {
		t.Errorf("Dropped: got %d, want 2", got)
	}
}

func TestCancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(0)
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	// Publishing after cancel must not panic.
	bus.Publish(Event{Type: TypeBreakDue})
}
