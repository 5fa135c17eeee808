// Package detector infers breaks from the foreground application.
//
// Every poll samples the frontmost app. Leaving the whitelist starts a loaf;
// coming back ends it, and a loaf longer than the minimum is reported as a
// finished auto-detected break.
package detector

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fakeyudi/moyu/internal/clock"
	"github.com/fakeyudi/moyu/internal/events"
)

const (
	DefaultPeriod       = 5 * time.Second
	DefaultQueryTimeout = 1500 * time.Millisecond
	DefaultMinDuration  = 5 * time.Second
)

// State is the detector's loafing status.
type State struct {
	Loafing         bool
	LoafStartedAt   time.Time
	LastObservedApp string
}

// Loaf is a finished auto-detected break.
type Loaf struct {
	App       string
	StartedAt time.Time
	Duration  time.Duration
}

// Options configures a Detector. Zero fields take the package defaults.
type Options struct {
	Query        Query
	Clock        clock.Clock
	Period       time.Duration
	QueryTimeout time.Duration
	MinDuration  time.Duration
	Whitelist    []string
	Disabled     bool
	// OnLoaf receives every finished loaf. It runs on the polling goroutine
	// and must not block for long.
	OnLoaf    func(Loaf)
	Publisher events.Publisher
	Logger    *slog.Logger
}

// Detector polls the foreground app. It is safe for concurrent use.
type Detector struct {
	query        Query
	clock        clock.Clock
	period       time.Duration
	queryTimeout time.Duration
	minDuration  time.Duration
	onLoaf       func(Loaf)
	pub          events.Publisher
	log          *slog.Logger

	mu        sync.Mutex
	state     State
	whitelist []string
	enabled   bool
	// generation is bumped by SetEnabled so a query that was in flight
	// across a disable cannot revive discarded state.
	generation uint64
	inert      bool

	inFlight atomic.Bool
	skipped  atomic.Int64
}

// New builds a Detector. A nil Query selects the one for this platform.
func New(opts Options) *Detector {
	if opts.Query == nil {
		opts.Query = ForPlatform(nil)
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if opts.MinDuration <= 0 {
		opts.MinDuration = DefaultMinDuration
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Discard{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Detector{
		query:        opts.Query,
		clock:        opts.Clock,
		period:       opts.Period,
		queryTimeout: opts.QueryTimeout,
		minDuration:  opts.MinDuration,
		onLoaf:       opts.OnLoaf,
		pub:          opts.Publisher,
		log:          opts.Logger.With("component", "detector"),
		whitelist:    normalize(opts.Whitelist),
		enabled:      !opts.Disabled,
	}
}

// IsWorkApp reports whether app contains any whitelist entry, ignoring case.
// Blank entries never match.
func IsWorkApp(app string, whitelist []string) bool {
	lower := strings.ToLower(app)
	for _, w := range whitelist {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" && strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func normalize(whitelist []string) []string {
	out := make([]string, 0, len(whitelist))
	for _, w := range whitelist {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// SetWhitelist replaces the work-app list.
func (d *Detector) SetWhitelist(whitelist []string) {
	d.mu.Lock()
	d.whitelist = normalize(whitelist)
	d.mu.Unlock()
}

// SetEnabled flips the master switch. Disabling drops any loaf in progress
// without reporting it.
func (d *Detector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enabled == enabled {
		return
	}
	d.enabled = enabled
	d.generation++
	if !enabled {
		wasLoafing := d.state.Loafing
		d.state.Loafing = false
		d.state.LoafStartedAt = time.Time{}
		if wasLoafing {
			d.log.Info("tracking disabled, discarding loaf in progress")
		}
	}
}

// Enabled reports the master switch.
func (d *Detector) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// Inert reports whether the platform query turned out to be unsupported.
func (d *Detector) Inert() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inert
}

// State returns a snapshot.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Skipped counts polls dropped because the previous one was still running.
func (d *Detector) Skipped() int64 {
	return d.skipped.Load()
}

// Tick runs one poll. Query failures are returned wrapped in
// ErrTransientQuery and leave the state untouched.
func (d *Detector) Tick(ctx context.Context) error {
	d.mu.Lock()
	if !d.enabled || d.inert {
		d.mu.Unlock()
		return nil
	}
	gen := d.generation
	d.mu.Unlock()

	qctx, cancel := context.WithTimeout(ctx, d.queryTimeout)
	app, err := d.query.ForegroundApp(qctx)
	cancel()
	if err != nil {
		if errors.Is(err, ErrUnsupportedPlatform) {
			d.mu.Lock()
			if !d.inert {
				d.inert = true
				d.log.Warn("foreground detection unavailable, auto-detect disabled", "error", err)
			}
			d.mu.Unlock()
			return err
		}
		if !errors.Is(err, ErrTransientQuery) {
			err = errors.Join(ErrTransientQuery, err)
		}
		d.log.Debug("foreground query failed", "error", err)
		return err
	}
	if app == "" {
		return nil
	}

	loaf, ended, changed := d.observe(gen, app)
	if changed {
		s := d.State()
		d.pub.Publish(events.Event{
			Type: events.TypeDetector,
			Data: events.DetectorState{Loafing: s.Loafing, App: app, Since: s.LoafStartedAt},
		})
	}
	if ended && d.onLoaf != nil {
		d.onLoaf(loaf)
	}
	return nil
}

// observe applies one sample to the state machine. It reports a finished
// loaf long enough to keep, and whether the loafing flag flipped.
func (d *Detector) observe(gen uint64, app string) (Loaf, bool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.generation || !d.enabled {
		return Loaf{}, false, false
	}

	now := d.clock.Now()
	working := IsWorkApp(app, d.whitelist)

	var (
		loaf    Loaf
		emit    bool
		changed bool
	)
	switch {
	case !d.state.Loafing && !working && len(d.whitelist) > 0:
		d.state.Loafing = true
		d.state.LoafStartedAt = now
		changed = true
	case d.state.Loafing && working:
		dur := now.Sub(d.state.LoafStartedAt)
		if dur > d.minDuration {
			loaf = Loaf{App: d.state.LastObservedApp, StartedAt: d.state.LoafStartedAt, Duration: dur}
			emit = true
		}
		d.state.Loafing = false
		d.state.LoafStartedAt = time.Time{}
		changed = true
	}
	d.state.LastObservedApp = app
	return loaf, emit, changed
}

// Run polls every period until ctx is cancelled. A poll still running when
// the next one is due causes that next one to be skipped.
func (d *Detector) Run(ctx context.Context) error {
	if d.Inert() {
		return nil
	}
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if d.Inert() {
				return nil
			}
			if !d.inFlight.CompareAndSwap(false, true) {
				d.skipped.Add(1)
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer d.inFlight.Store(false)
				_ = d.Tick(ctx)
			}()
		}
	}
}

// RunningApps lists visible applications for whitelist suggestions.
func (d *Detector) RunningApps(ctx context.Context) ([]string, error) {
	return d.query.RunningApps(ctx)
}
