package settings

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/fakeyudi/moyu/internal/kv"
	"github.com/fakeyudi/moyu/internal/session"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load(context.Background(), kv.NewMemoryStore())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(s, Defaults()) {
		t.Errorf("got %+v, want defaults", s)
	}
	if !s.TrackingEnabled {
		t.Error("tracking should default to enabled")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	want := Defaults()
	want.WorkApps = []string{"Code", "Terminal"}
	want.Compensation.MonthlySalary = 23000
	want.Compensation.CurrencySymbol = "$"
	want.TrackingEnabled = false

	if err := Save(ctx, store, want); err != nil {
		t.Fatal(err)
	}
	got, err := Load(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()

	cases := []struct{ key, in, out string }{
		{KeyWorkApps, " Code, ,Slack,Code ", "Code,Slack"},
		{KeySalary, "15000.5", "15000.5"},
		{KeyWorkDays, "20", "20"},
		{KeyWorkHours, "7.5", "7.5"},
		{KeyCurrency, " € ", "€"},
		{KeyTracking, "false", "false"},
	}
	for _, c := range cases {
		if err := Set(ctx, store, c.key, c.in); err != nil {
			t.Fatalf("Set(%s): %v", c.key, err)
		}
		got, err := Get(ctx, store, c.key)
		if err != nil {
			t.Fatalf("Get(%s): %v", c.key, err)
		}
		if got != c.out {
			t.Errorf("%s: got %q, want %q", c.key, got, c.out)
		}
	}
}

func TestSetRejectsBadValues(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	for _, c := range [][2]string{{KeySalary, "lots"}, {KeyWorkDays, "-1"}, {KeyTracking, "maybe"}} {
		if err := Set(ctx, store, c[0], c[1]); err == nil {
			t.Errorf("Set(%s, %q) should fail", c[0], c[1])
		}
	}
	if err := Set(ctx, store, "nope", "1"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("unknown key: got %v", err)
	}
	if _, err := Get(ctx, store, "nope"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("unknown key: got %v", err)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	_ = Set(ctx, store, KeySalary, "1")
	if err := Reset(ctx, store); err != nil {
		t.Fatal(err)
	}
	s, _ := Load(ctx, store)
	if s.Compensation.MonthlySalary != Defaults().Compensation.MonthlySalary {
		t.Errorf("salary not reset: %v", s.Compensation.MonthlySalary)
	}
}

func TestLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	snap, err := LoadSnapshot(ctx, store)
	if err != nil || snap.Active != nil {
		t.Fatalf("empty snapshot: %+v %v", snap, err)
	}
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if _, err := session.StartBreak(ctx, store, session.ManualPoop(), start); err != nil {
		t.Fatal(err)
	}
	snap, err = LoadSnapshot(ctx, store)
	if err != nil || snap.Active == nil || !snap.Active.StartedAt.Equal(start) {
		t.Fatalf("snapshot with break: %+v %v", snap, err)
	}
}

func TestWatchNotWatchable(t *testing.T) {
	err := Watch(context.Background(), kv.NewMemoryStore(), 0, func(Snapshot) {})
	if !errors.Is(err, ErrNotWatchable) {
		t.Fatalf("got %v", err)
	}
}

func TestWatchSeesOtherWriter(t *testing.T) {
	dir := t.TempDir()
	daemon, err := kv.Open(kv.BackendJSONFile, dir)
	if err != nil {
		t.Fatal(err)
	}
	cli, err := kv.Open(kv.BackendJSONFile, dir)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Snapshot, 8)
	started := make(chan struct{})
	go func() {
		close(started)
		_ = Watch(ctx, daemon, 20*time.Millisecond, func(s Snapshot) { got <- s })
	}()
	<-started

	// The watcher registers asynchronously; keep writing until it reports.
	deadline := time.After(5 * time.Second)
	for {
		if err := Set(context.Background(), cli, KeyWorkApps, "Code"); err != nil {
			t.Fatal(err)
		}
		select {
		case s := <-got:
			if !reflect.DeepEqual(s.Settings.WorkApps, []string{"Code"}) {
				t.Fatalf("whitelist: got %v", s.Settings.WorkApps)
			}
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("watcher never fired")
		}
	}
}
