package detector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
)

var (
	// ErrTransientQuery wraps any failed or timed-out foreground query. The
	// tick that hit it changes nothing; the next poll retries.
	ErrTransientQuery = errors.New("foreground query failed")

	// ErrUnsupportedPlatform means no foreground query exists here. The
	// detector stays idle for the rest of the process.
	ErrUnsupportedPlatform = errors.New("foreground query unsupported on this platform")
)

// Runner executes an external command and returns its stdout.
// This abstraction allows mocking in tests.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// defaultRunner runs the command as a real subprocess.
func defaultRunner(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return string(out), err
}

// Query samples the OS for application names.
type Query interface {
	// ForegroundApp returns the frontmost application's name, or "" when
	// nothing is focused.
	ForegroundApp(ctx context.Context) (string, error)

	// RunningApps lists visible applications, deduplicated.
	RunningApps(ctx context.Context) ([]string, error)
}

// ForPlatform picks the query for runtime.GOOS.
func ForPlatform(runner Runner) Query {
	return ForOS(runtime.GOOS, runner)
}

// ForOS picks the query for goos. A nil runner uses real subprocesses.
func ForOS(goos string, runner Runner) Query {
	if runner == nil {
		runner = defaultRunner
	}
	switch goos {
	case "darwin":
		return &AppleScriptQuery{Runner: runner}
	case "linux":
		return &X11Query{Runner: runner}
	default:
		return Unsupported{}
	}
}

const (
	frontmostScript = `tell application "System Events" to get name of first application process whose frontmost is true`
	runningScript   = `tell application "System Events" to get name of every process whose background only is false`
)

// AppleScriptQuery asks System Events through osascript.
type AppleScriptQuery struct {
	Runner Runner
}

func (q *AppleScriptQuery) ForegroundApp(ctx context.Context) (string, error) {
	out, err := q.Runner(ctx, "osascript", "-e", frontmostScript)
	if err != nil {
		return "", fmt.Errorf("%w: osascript: %v", ErrTransientQuery, err)
	}
	return strings.TrimSpace(out), nil
}

func (q *AppleScriptQuery) RunningApps(ctx context.Context) ([]string, error) {
	out, err := q.Runner(ctx, "osascript", "-e", runningScript)
	if err != nil {
		return nil, fmt.Errorf("%w: osascript: %v", ErrTransientQuery, err)
	}
	// osascript prints the list comma separated on one line.
	return dedupe(strings.Split(out, ",")), nil
}

// X11Query resolves the active window's pid with xdotool and reads the
// process name from procfs.
type X11Query struct {
	Runner Runner
	// ProcRoot defaults to /proc.
	ProcRoot string
}

func (q *X11Query) ForegroundApp(ctx context.Context) (string, error) {
	out, err := q.Runner(ctx, "xdotool", "getactivewindow", "getwindowpid")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: xdotool not installed", ErrUnsupportedPlatform)
		}
		return "", fmt.Errorf("%w: xdotool: %v", ErrTransientQuery, err)
	}
	pid := strings.TrimSpace(out)
	if pid == "" {
		return "", nil
	}
	if n, err := strconv.Atoi(pid); err != nil || n <= 0 {
		return "", fmt.Errorf("%w: xdotool returned pid %q", ErrTransientQuery, pid)
	}
	name, err := q.procName(pid)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransientQuery, err)
	}
	return name, nil
}

// RunningApps parses `wmctrl -lp`: id, desktop, pid, host, title.
func (q *X11Query) RunningApps(ctx context.Context) ([]string, error) {
	out, err := q.Runner(ctx, "wmctrl", "-lp")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: wmctrl not installed", ErrUnsupportedPlatform)
		}
		return nil, fmt.Errorf("%w: wmctrl: %v", ErrTransientQuery, err)
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if pid, err := strconv.Atoi(fields[2]); err != nil || pid <= 0 {
			continue
		}
		name, err := q.procName(fields[2])
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	return dedupe(names), nil
}

func (q *X11Query) procName(pid string) (string, error) {
	root := q.ProcRoot
	if root == "" {
		root = "/proc"
	}
	data, err := os.ReadFile(filepath.Join(root, pid, "comm"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Unsupported is the query for platforms with no foreground API.
type Unsupported struct{}

func (Unsupported) ForegroundApp(context.Context) (string, error) {
	return "", ErrUnsupportedPlatform
}

func (Unsupported) RunningApps(context.Context) ([]string, error) {
	return nil, ErrUnsupportedPlatform
}

// dedupe trims names, drops empties and sorts case-insensitively.
func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return out
}
