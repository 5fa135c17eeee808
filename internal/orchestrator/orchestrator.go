// Package orchestrator finishes breaks. Every break end, whether typed by
// the user or inferred by the detector, goes through one writer that
// records it, prices it, rolls for a catch, restarts the work timer and
// announces the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fakeyudi/moyu/internal/clock"
	"github.com/fakeyudi/moyu/internal/earnings"
	"github.com/fakeyudi/moyu/internal/events"
	"github.com/fakeyudi/moyu/internal/notify"
	"github.com/fakeyudi/moyu/internal/reward"
	"github.com/fakeyudi/moyu/internal/session"
)

// ErrStopped is returned by Submit once Run has stopped.
var ErrStopped = errors.New("orchestrator stopped")

// DefaultQueueSize bounds pending break ends.
const DefaultQueueSize = 32

const notifyTimeout = 5 * time.Second

// BreakEnd is a finished break waiting to be processed.
type BreakEnd struct {
	Kind      session.Kind
	StartedAt time.Time
	Duration  time.Duration
}

// Result is what a processed break produced.
type Result struct {
	Session  session.BreakSession
	Earned   float64
	Currency string
	Reward   *reward.Reward
	// Recorded is false when the ledger write failed.
	Recorded bool
}

// DurationSeconds is the break length.
func (r Result) DurationSeconds() float64 {
	return r.Session.DurationSeconds
}

// Resetter restarts the work interval.
type Resetter interface {
	Reset()
}

// Options wires an Orchestrator. Ledger and Resolver are required.
type Options struct {
	Ledger     *session.Ledger
	Resolver   *reward.Resolver
	Collection *reward.Collection
	Timer      Resetter
	// Compensation is consulted on every break so setting changes apply
	// without a restart.
	Compensation func() earnings.Compensation
	Publisher    events.Publisher
	Notifier     notify.Notifier
	Clock        clock.Clock
	Logger       *slog.Logger
	QueueSize    int
}

type request struct {
	end   BreakEnd
	reply chan Result
}

// Orchestrator serializes break processing.
type Orchestrator struct {
	ledger     *session.Ledger
	resolver   *reward.Resolver
	collection *reward.Collection
	timer      Resetter
	comp       func() earnings.Compensation
	pub        events.Publisher
	notifier   notify.Notifier
	clock      clock.Clock
	log        *slog.Logger

	// mu makes process the single writer for both the queue and EndBreak.
	mu    sync.Mutex
	queue chan request
	done  chan struct{}

	// stopMu guards stopped. senders counts Submit calls that got past the
	// stopped check, so Run can drain everything they enqueue.
	stopMu  sync.Mutex
	stopped bool
	senders sync.WaitGroup
}

// New builds an Orchestrator. Call Run to start draining Submit's queue.
func New(opts Options) *Orchestrator {
	if opts.Compensation == nil {
		opts.Compensation = earnings.Defaults
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Discard{}
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	return &Orchestrator{
		ledger:     opts.Ledger,
		resolver:   opts.Resolver,
		collection: opts.Collection,
		timer:      opts.Timer,
		comp:       opts.Compensation,
		pub:        opts.Publisher,
		notifier:   opts.Notifier,
		clock:      opts.Clock,
		log:        opts.Logger.With("component", "orchestrator"),
		queue:      make(chan request, opts.QueueSize),
		done:       make(chan struct{}),
	}
}

// Run processes submitted break ends in order until ctx is cancelled. Ends
// already accepted by Submit are still processed after cancellation, so a
// shutdown never drops a finished break.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			o.drain(context.WithoutCancel(ctx))
			return nil
		case req := <-o.queue:
			o.handle(ctx, req)
		}
	}
}

// drain stops accepting work and processes whatever Submit has enqueued.
func (o *Orchestrator) drain(ctx context.Context) {
	o.stopMu.Lock()
	o.stopped = true
	o.stopMu.Unlock()
	close(o.done)

	idle := make(chan struct{})
	go func() {
		o.senders.Wait()
		close(idle)
	}()

	var n int
	for busy := true; busy; {
		select {
		case req := <-o.queue:
			o.handle(ctx, req)
			n++
		case <-idle:
			busy = false
		}
	}
	for len(o.queue) > 0 {
		o.handle(ctx, <-o.queue)
		n++
	}
	if n > 0 {
		o.log.Info("processed queued breaks on shutdown", "count", n)
	}
}

func (o *Orchestrator) handle(ctx context.Context, req request) {
	res := o.process(ctx, req.end)
	if req.reply != nil {
		req.reply <- res
	}
}

// Submit enqueues end, blocking while the queue is full. It returns
// ErrStopped once Run has begun shutting down.
func (o *Orchestrator) Submit(ctx context.Context, end BreakEnd) error {
	o.stopMu.Lock()
	if o.stopped {
		o.stopMu.Unlock()
		return ErrStopped
	}
	o.senders.Add(1)
	o.stopMu.Unlock()
	defer o.senders.Done()

	select {
	case o.queue <- request{end: end}:
		return nil
	case <-o.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EndBreak processes end immediately and returns its result. It does not
// need Run and is serialized with it.
func (o *Orchestrator) EndBreak(ctx context.Context, end BreakEnd) Result {
	return o.process(ctx, end)
}

// StartBreak restarts the work interval for an explicit break and
// announces it.
func (o *Orchestrator) StartBreak(kind session.Kind) {
	if o.timer != nil {
		o.timer.Reset()
	}
	o.pub.Publish(events.Event{
		Type: events.TypeBreakStarted,
		Data: events.BreakStarted{Kind: string(kind.Type), Label: kind.Label()},
	})
}

// Follow mirrors an explicit break that another process sharing the store
// started (prev nil, next set) or ended (prev set, next nil). The other
// process did the bookkeeping; here the work interval restarts and the
// recorded session is republished so local subscribers see it.
func (o *Orchestrator) Follow(ctx context.Context, prev, next *session.ActiveBreak) {
	switch {
	case prev == nil && next != nil:
		o.StartBreak(next.Kind)
	case prev != nil && next == nil:
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.timer != nil {
			o.timer.Reset()
		}
		sess, ok := o.recorded(ctx, *prev)
		if !ok {
			o.log.Debug("ended break not found in ledger", "kind", prev.Kind.Type)
			return
		}
		comp := o.comp()
		o.pub.Publish(events.Event{
			Type: events.TypeBreakResult,
			Data: events.BreakResult{
				Kind:            string(sess.Kind.Type),
				Label:           sess.Kind.Label(),
				DurationSeconds: sess.DurationSeconds,
				Earned:          earnings.Earned(sess.DurationSeconds, comp),
				Currency:        comp.CurrencySymbol,
				Recorded:        true,
			},
		})
	}
}

// recorded finds the ledger entry for an ended explicit break.
func (o *Orchestrator) recorded(ctx context.Context, b session.ActiveBreak) (session.BreakSession, bool) {
	sessions, err := o.ledger.SessionsSince(ctx, b.StartedAt)
	if err != nil {
		return session.BreakSession{}, false
	}
	for _, s := range sessions {
		if s.Kind.Type == b.Kind.Type && s.StartedAt.Equal(b.StartedAt) {
			return s, true
		}
	}
	return session.BreakSession{}, false
}

func (o *Orchestrator) process(ctx context.Context, end BreakEnd) Result {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess := session.New(end.Kind, end.StartedAt, end.Duration)
	log := o.log.With("break_id", sess.ID, "kind", sess.Kind.Type, "seconds", sess.DurationSeconds)

	res := Result{Session: sess, Recorded: true}
	if err := o.ledger.Append(ctx, sess); err != nil {
		res.Recorded = false
		log.Warn("break not recorded", "error", err)
	}

	comp := o.comp()
	if errors.Is(comp.Validate(), earnings.ErrConfigurationMissing) {
		log.Debug("compensation not configured, earnings are zero")
	}
	res.Earned = earnings.Earned(sess.DurationSeconds, comp)
	res.Currency = comp.CurrencySymbol

	if rw, ok := o.resolver.Resolve(sess.DurationSeconds); ok {
		res.Reward = &rw
		if o.collection != nil {
			if err := o.collection.Add(ctx, reward.NewCatch(rw, o.clock.Now())); err != nil {
				log.Warn("catch not saved", "error", err)
			}
		}
	}

	if o.timer != nil {
		o.timer.Reset()
	}

	o.pub.Publish(events.Event{
		Type: events.TypeBreakResult,
		Data: events.BreakResult{
			Kind:            string(sess.Kind.Type),
			Label:           sess.Kind.Label(),
			DurationSeconds: sess.DurationSeconds,
			Earned:          res.Earned,
			Currency:        res.Currency,
			Reward:          res.Reward,
			Recorded:        res.Recorded,
		},
	})

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	if err := o.notifier.Notify(nctx, Message(res)); err != nil {
		log.Debug("notification failed", "error", err)
	}
	cancel()

	log.Info("break processed", "earned", res.Earned, "caught", res.Reward != nil)
	return res
}

// Message is the notification text for a result.
func Message(res Result) notify.Message {
	sess := res.Session
	if sess.Kind.Type == session.KindAutoDetected {
		return notify.Message{
			Title: "Break over",
			Body:  fmt.Sprintf("Loafed %.0f s in %s", sess.DurationSeconds, sess.Kind.App),
		}
	}
	body := fmt.Sprintf("%s on the clock, earned %s. ",
		session.FormatDuration(sess.Duration()), earnings.Format(res.Earned, res.Currency))
	if res.Reward != nil {
		body += fmt.Sprintf("Caught a %s %s (%s)!", res.Reward.Glyph, res.Reward.Name, res.Reward.Rarity)
	} else {
		body += "No catch this time."
	}
	return notify.Message{Title: sess.Kind.Label(), Body: body}
}
