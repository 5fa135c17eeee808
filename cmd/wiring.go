package cmd

import (
	"context"
	"log/slog"

	"github.com/fakeyudi/moyu/internal/earnings"
	"github.com/fakeyudi/moyu/internal/events"
	"github.com/fakeyudi/moyu/internal/notify"
	"github.com/fakeyudi/moyu/internal/orchestrator"
	"github.com/fakeyudi/moyu/internal/reward"
	"github.com/fakeyudi/moyu/internal/settings"
)

// newNotifier maps the notifications config value to a Notifier.
func newNotifier(mode string, log *slog.Logger) notify.Notifier {
	switch mode {
	case "off":
		return notify.Nop{}
	case "log":
		return notify.Log{Logger: log}
	default:
		return notify.Multi{notify.NewDesktop(), notify.Log{Logger: log}}
	}
}

// newOrchestrator builds the break pipeline over the open store. timer and
// pub may be nil for one-shot commands.
func newOrchestrator(ctx context.Context, timer orchestrator.Resetter, pub events.Publisher, log *slog.Logger) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Options{
		Ledger:     ledger(),
		Resolver:   reward.NewResolver(nil, nil),
		Collection: reward.NewCollection(store),
		Compensation: func() earnings.Compensation {
			s, err := settings.Load(ctx, store)
			if err != nil {
				log.Warn("settings unavailable, using default compensation", "error", err)
				return earnings.Defaults()
			}
			return s.Compensation
		},
		Timer:     timer,
		Publisher: pub,
		Notifier:  newNotifier(cfg.Notifications, log),
		Logger:    log,
	})
}
