// Package notify delivers fire-and-forget break messages to the desktop.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
)

// Message is one notification.
type Message struct {
	Title string
	Body  string
}

// Notifier shows a message. Errors are informational only.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Runner executes an external command.
// This abstraction allows mocking in tests.
type Runner func(ctx context.Context, name string, args ...string) error

func defaultRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// ErrNoDesktop is returned by Desktop on platforms without a notifier.
var ErrNoDesktop = errors.New("no desktop notifier for this platform")

// Desktop posts through osascript on macOS and notify-send elsewhere.
type Desktop struct {
	GOOS   string
	Runner Runner
}

// NewDesktop returns a Desktop notifier for this platform.
func NewDesktop() *Desktop {
	return &Desktop{GOOS: runtime.GOOS, Runner: defaultRunner}
}

func (d *Desktop) Notify(ctx context.Context, msg Message) error {
	run := d.Runner
	if run == nil {
		run = defaultRunner
	}
	switch d.GOOS {
	case "darwin":
		script := "display notification " + strconv.Quote(msg.Body) + " with title " + strconv.Quote(msg.Title)
		return run(ctx, "osascript", "-e", script)
	case "linux", "freebsd", "openbsd":
		return run(ctx, "notify-send", "--app-name=moyu", msg.Title, msg.Body)
	default:
		return ErrNoDesktop
	}
}

// Log writes messages to a logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, msg Message) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", "title", msg.Title, "body", msg.Body)
	return nil
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every message.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }
