package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/fakeyudi/moyu/internal/detector"
	"github.com/fakeyudi/moyu/internal/events"
	"github.com/fakeyudi/moyu/internal/notify"
	"github.com/fakeyudi/moyu/internal/orchestrator"
	"github.com/fakeyudi/moyu/internal/session"
	"github.com/fakeyudi/moyu/internal/settings"
	"github.com/fakeyudi/moyu/internal/tui"
	"github.com/fakeyudi/moyu/internal/worktimer"
)

// daemon owns the long-running components started by `moyu run`.
type daemon struct {
	log      *slog.Logger
	bus      *events.Bus
	timer    *worktimer.Timer
	det      *detector.Detector
	orch     *orchestrator.Orchestrator
	notifier notify.Notifier

	mu sync.Mutex
	// active is the explicit break as last seen in the store.
	active *session.ActiveBreak
}

// statusView is served at /api/status and sent to new websocket clients.
type statusView struct {
	Percent          float64              `json:"percent"`
	RemainingMinutes int                  `json:"remaining_minutes"`
	Indicator        string               `json:"indicator"`
	Paused           bool                 `json:"paused"`
	Tracking         bool                 `json:"tracking"`
	Loafing          bool                 `json:"loafing"`
	LoafApp          string               `json:"loaf_app,omitempty"`
	Active           *session.ActiveBreak `json:"active_break,omitempty"`
	TotalSeconds     float64              `json:"total_seconds"`
}

// newDaemon wires the timer, detector and orchestrator from the current
// snapshot. A nil query selects the platform's.
func newDaemon(ctx context.Context, query detector.Query, log *slog.Logger) (*daemon, error) {
	snap, err := settings.LoadSnapshot(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	d := &daemon{
		log:      log,
		bus:      events.NewBus(),
		notifier: newNotifier(cfg.Notifications, log),
		active:   snap.Active,
	}
	d.timer = worktimer.New(worktimer.Options{
		Target:    cfg.WorkInterval.Std(),
		Cadence:   cfg.TickInterval.Std(),
		Publisher: d.bus,
	})
	d.orch = newOrchestrator(ctx, d.timer, d.bus, log)
	d.det = detector.New(detector.Options{
		Query:        query,
		Period:       cfg.PollInterval.Std(),
		QueryTimeout: cfg.QueryTimeout.Std(),
		MinDuration:  cfg.MinLoafDuration.Std(),
		Whitelist:    snap.Settings.WorkApps,
		Disabled:     !snap.Settings.TrackingEnabled,
		OnLoaf: func(l detector.Loaf) {
			end := orchestrator.BreakEnd{
				Kind:      session.AutoDetected(l.App),
				StartedAt: l.StartedAt,
				Duration:  l.Duration,
			}
			if err := d.orch.Submit(ctx, end); err != nil {
				d.log.Warn("loaf dropped", "app", l.App, "error", err)
			}
		},
		Publisher: d.bus,
		Logger:    log,
	})
	return d, nil
}

// run blocks until ctx is cancelled and every component has stopped.
func (d *daemon) run(ctx context.Context) {
	var wg sync.WaitGroup
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.log.Error("component stopped", "component", name, "error", err)
			}
		}()
	}

	spawn("orchestrator", d.orch.Run)
	spawn("detector", d.det.Run)
	spawn("timer", func(ctx context.Context) error {
		return d.timer.Run(ctx, func() { d.breakDue(ctx) })
	})
	spawn("watcher", func(ctx context.Context) error {
		err := settings.Watch(ctx, store, settings.DefaultDebounce, func(s settings.Snapshot) {
			d.apply(ctx, s)
		})
		if errors.Is(err, settings.ErrNotWatchable) {
			d.log.Info("store is not file-backed, settings changes need a restart")
			return nil
		}
		return err
	})

	wg.Wait()
}

// breakDue notifies the user and starts the next interval once the
// notification has been handled, so reminders keep coming while no break is
// taken.
func (d *daemon) breakDue(ctx context.Context) {
	msg := notify.Message{
		Title: worktimer.BellGlyph + " Time for a break",
		Body:  fmt.Sprintf("You've worked %s straight. Go loaf a little.", session.FormatDuration(cfg.WorkInterval.Std())),
	}
	nctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.notifier.Notify(nctx, msg); err != nil {
		d.log.Debug("notification failed", "error", err)
	}
	d.timer.Reset()
}

// apply pushes a reloaded snapshot into the running components.
func (d *daemon) apply(ctx context.Context, snap settings.Snapshot) {
	d.det.SetWhitelist(snap.Settings.WorkApps)
	d.det.SetEnabled(snap.Settings.TrackingEnabled)

	d.mu.Lock()
	prev, next := d.active, snap.Active
	if sameBreak(prev, next) {
		d.mu.Unlock()
		return
	}
	d.active = next
	d.mu.Unlock()

	if prev != nil && next != nil {
		// Missed a stop and a start between two reloads.
		d.orch.Follow(ctx, prev, nil)
		d.orch.Follow(ctx, nil, next)
		return
	}
	d.orch.Follow(ctx, prev, next)
}

func sameBreak(a, b *session.ActiveBreak) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Kind == b.Kind && a.StartedAt.Equal(b.StartedAt)
}

func (d *daemon) startBreak(ctx context.Context, kind session.Kind) error {
	b, err := session.StartBreak(ctx, store, kind, time.Now())
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.active = &b
	d.mu.Unlock()
	d.orch.StartBreak(kind)
	return nil
}

func (d *daemon) stopBreak(ctx context.Context) (orchestrator.Result, error) {
	active, err := session.LoadActive(ctx, store)
	if err != nil {
		return orchestrator.Result{}, err
	}
	res := d.orch.EndBreak(ctx, orchestrator.BreakEnd{
		Kind:      active.Kind,
		StartedAt: active.StartedAt,
		Duration:  time.Since(active.StartedAt),
	})
	d.mu.Lock()
	d.active = nil
	d.mu.Unlock()
	return res, session.ClearActive(ctx, store)
}

func (d *daemon) setTracking(ctx context.Context, enabled bool) error {
	if err := settings.Set(ctx, store, settings.KeyTracking, strconv.FormatBool(enabled)); err != nil {
		return err
	}
	d.det.SetEnabled(enabled)
	return nil
}

func (d *daemon) status(ctx context.Context) (any, error) {
	total, err := ledger().TotalAccumulatedSeconds(ctx)
	if err != nil {
		return nil, err
	}
	st := d.timer.State()
	ds := d.det.State()

	d.mu.Lock()
	active := d.active
	d.mu.Unlock()

	return statusView{
		Percent:          d.timer.Progress(),
		RemainingMinutes: d.timer.RemainingMinutes(),
		Indicator:        d.timer.Indicator(),
		Paused:           st.Status == worktimer.PausedForBreak,
		Tracking:         d.det.Enabled(),
		Loafing:          ds.Loafing,
		LoafApp:          ds.LastObservedApp,
		Active:           active,
		TotalSeconds:     total,
	}, nil
}

// dashboard builds the interactive view wired to the daemon's controls.
func (d *daemon) dashboard(ctx context.Context, ch <-chan events.Event, listenURL string) (tui.DashboardModel, error) {
	s, err := loadSettings(ctx)
	if err != nil {
		return tui.DashboardModel{}, err
	}
	d.mu.Lock()
	active := d.active
	d.mu.Unlock()

	controls := tui.Controls{
		StartBreak: func(kind session.Kind) error { return d.startBreak(ctx, kind) },
		StopBreak: func() error {
			_, err := d.stopBreak(ctx)
			return err
		},
		SetTracking: func(enabled bool) error { return d.setTracking(ctx, enabled) },
	}
	return tui.NewDashboard(ch, controls, tui.DashboardState{
		Percent:          d.timer.Progress(),
		RemainingMinutes: d.timer.RemainingMinutes(),
		Tracking:         d.det.Enabled(),
		Whitelist:        s.WorkApps,
		Active:           active,
		ListenURL:        listenURL,
	}), nil
}

// logEvents writes bus events to the log until ctx is cancelled.
func (d *daemon) logEvents(ctx context.Context) {
	ch, cancel := d.bus.Subscribe(0)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			level := slog.LevelInfo
			if ev.Type == events.TypeTimerProgress {
				level = slog.LevelDebug
			}
			d.log.Log(ctx, level, "event", "type", ev.Type, "data", ev.Data)
		}
	}
}
