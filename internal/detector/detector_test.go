package detector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/fakeyudi/moyu/internal/clock"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// fakeQuery returns the app it was last told to, or err.
type fakeQuery struct {
	mu   sync.Mutex
	app  string
	err  error
	apps []string
}

func (f *fakeQuery) set(app string, err error) {
	f.mu.Lock()
	f.app, f.err = app, err
	f.mu.Unlock()
}

func (f *fakeQuery) ForegroundApp(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.app, f.err
}

func (f *fakeQuery) RunningApps(context.Context) ([]string, error) {
	return f.apps, nil
}

type harness struct {
	q     *fakeQuery
	clk   *clock.Manual
	d     *Detector
	loafs []Loaf
}

func newHarness(whitelist []string) *harness {
	h := &harness{q: &fakeQuery{}, clk: clock.NewManual(epoch)}
	h.d = New(Options{
		Query:     h.q,
		Clock:     h.clk,
		Whitelist: whitelist,
		OnLoaf:    func(l Loaf) { h.loafs = append(h.loafs, l) },
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h
}

// poll samples app at the current time, then moves the clock one period on.
func (h *harness) poll(t interface{ Fatalf(string, ...any) }, app string) {
	h.q.set(app, nil)
	if err := h.d.Tick(context.Background()); err != nil {
		t.Fatalf("Tick(%q): %v", app, err)
	}
	h.clk.Advance(DefaultPeriod)
}

func TestIsWorkApp(t *testing.T) {
	wl := []string{"  Code ", "", "chrome"}
	cases := map[string]bool{
		"Visual Studio Code": true,
		"Google Chrome":      true,
		"CHROME":             true,
		"Safari":             false,
		"":                   false,
	}
	for app, want := range cases {
		if got := IsWorkApp(app, wl); got != want {
			t.Errorf("IsWorkApp(%q) = %v, want %v", app, got, want)
		}
	}
	if IsWorkApp("anything", nil) {
		t.Error("empty whitelist matched")
	}
	if IsWorkApp("anything", []string{"   "}) {
		t.Error("blank entry matched")
	}
}

// Feature: moyu, Property: a sustained loaf longer than the minimum yields one session of its length
func TestSustainedLoafEmitsOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := newHarness([]string{"Code"})
		polls := rapid.IntRange(2, 200).Draw(rt, "polls")

		h.poll(rt, "Visual Studio Code")
		start := h.clk.Now()
		for range polls {
			h.poll(rt, "Safari")
		}
		end := h.clk.Now()
		h.poll(rt, "Visual Studio Code")

		if len(h.loafs) != 1 {
			rt.Fatalf("got %d sessions, want 1", len(h.loafs))
		}
		l := h.loafs[0]
		if want := end.Sub(start); l.Duration != want {
			rt.Fatalf("duration %v, want %v", l.Duration, want)
		}
		if l.App != "Safari" {
			rt.Fatalf("app %q, want Safari", l.App)
		}
		if !l.StartedAt.Equal(start) {
			rt.Fatalf("startedAt %v, want %v", l.StartedAt, start)
		}
		if h.d.State().Loafing {
			rt.Fatal("still loafing after returning to work")
		}
	})
}

// Feature: moyu, Property: an empty whitelist never produces a session
func TestEmptyWhitelistNeverEmits(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := newHarness(nil)
		apps := rapid.SliceOfN(rapid.SampledFrom([]string{"Safari", "Code", "Slack", "Finder"}), 1, 100).Draw(rt, "apps")
		for _, app := range apps {
			h.poll(rt, app)
			if h.d.State().Loafing {
				rt.Fatalf("started loafing on %q with an empty whitelist", app)
			}
		}
		if len(h.loafs) != 0 {
			rt.Fatalf("emitted %d sessions", len(h.loafs))
		}
	})
}

func TestShortLoafDiscarded(t *testing.T) {
	h := newHarness([]string{"Code"})
	h.poll(t, "Safari") // starts loaf, clock +5s
	h.poll(t, "Code")   // exactly 5s: not > 5s
	if len(h.loafs) != 0 {
		t.Fatalf("5s loaf recorded: %+v", h.loafs)
	}
	if h.d.State().Loafing {
		t.Fatal("loaf state not cleared")
	}
}

func TestQueryFailureIsNoOp(t *testing.T) {
	h := newHarness([]string{"Code"})
	h.poll(t, "Safari")
	before := h.d.State()

	h.q.set("", errors.New("boom"))
	err := h.d.Tick(context.Background())
	if !errors.Is(err, ErrTransientQuery) {
		t.Fatalf("got %v, want ErrTransientQuery", err)
	}
	if after := h.d.State(); after != before {
		t.Fatalf("state changed on failure: %+v -> %+v", before, after)
	}

	h.q.set("", nil)
	if err := h.d.Tick(context.Background()); err != nil {
		t.Fatalf("empty app: %v", err)
	}
	if after := h.d.State(); after != before {
		t.Fatalf("state changed on empty sample: %+v -> %+v", before, after)
	}
}

func TestDisableDiscardsLoaf(t *testing.T) {
	h := newHarness([]string{"Code"})
	h.poll(t, "Safari")
	h.poll(t, "Safari")
	h.d.SetEnabled(false)
	if h.d.State().Loafing {
		t.Fatal("disable kept loaf state")
	}
	h.poll(t, "Code")
	h.d.SetEnabled(true)
	h.poll(t, "Code")
	if len(h.loafs) != 0 {
		t.Fatalf("disabled loaf was emitted: %+v", h.loafs)
	}
}

func TestUnsupportedPlatformGoesInert(t *testing.T) {
	d := New(Options{Query: Unsupported{}, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err := d.Tick(context.Background()); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("got %v, want ErrUnsupportedPlatform", err)
	}
	if !d.Inert() {
		t.Fatal("detector not inert")
	}
	if err := d.Tick(context.Background()); err != nil {
		t.Fatalf("inert tick: %v", err)
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run on inert detector: %v", err)
	}
}

// blockingQuery parks until released so overlapping polls can be observed.
type blockingQuery struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingQuery) ForegroundApp(ctx context.Context) (string, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	select {
	case <-b.release:
		return "Code", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *blockingQuery) RunningApps(context.Context) ([]string, error) { return nil, nil }

func TestRunSkipsOverlappingPolls(t *testing.T) {
	q := &blockingQuery{started: make(chan struct{}, 1), release: make(chan struct{})}
	d := New(Options{
		Query:        q,
		Period:       time.Millisecond,
		QueryTimeout: time.Minute,
		Whitelist:    []string{"Code"},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	<-q.started
	deadline := time.After(5 * time.Second)
	for d.Skipped() == 0 {
		select {
		case <-deadline:
			t.Fatal("no poll was skipped")
		case <-time.After(time.Millisecond):
		}
	}
	close(q.release)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestQueryTimeout(t *testing.T) {
	q := &blockingQuery{started: make(chan struct{}, 1), release: make(chan struct{})}
	d := New(Options{
		Query:        q,
		QueryTimeout: 10 * time.Millisecond,
		Whitelist:    []string{"Code"},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	err := d.Tick(context.Background())
	if !errors.Is(err, ErrTransientQuery) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want transient deadline error", err)
	}
}
