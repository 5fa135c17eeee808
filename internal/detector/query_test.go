package detector

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
)

func TestForOS(t *testing.T) {
	if _, ok := ForOS("darwin", nil).(*AppleScriptQuery); !ok {
		t.Error("darwin should use osascript")
	}
	if _, ok := ForOS("linux", nil).(*X11Query); !ok {
		t.Error("linux should use xdotool")
	}
	if _, ok := ForOS("plan9", nil).(Unsupported); !ok {
		t.Error("plan9 should be unsupported")
	}
}

func TestAppleScriptQuery(t *testing.T) {
	var gotArgs []string
	q := &AppleScriptQuery{Runner: func(_ context.Context, name string, args ...string) (string, error) {
		gotArgs = append([]string{name}, args...)
		if args[1] == runningScript {
			return "Finder, Safari, Code, Safari\n", nil
		}
		return "Safari\n", nil
	}}

	app, err := q.ForegroundApp(context.Background())
	if err != nil || app != "Safari" {
		t.Fatalf("ForegroundApp = %q, %v", app, err)
	}
	if gotArgs[0] != "osascript" || gotArgs[2] != frontmostScript {
		t.Errorf("unexpected invocation %v", gotArgs)
	}

	apps, err := q.RunningApps(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Code", "Finder", "Safari"}; !reflect.DeepEqual(apps, want) {
		t.Errorf("RunningApps = %v, want %v", apps, want)
	}
}

func TestAppleScriptQueryFailure(t *testing.T) {
	q := &AppleScriptQuery{Runner: func(context.Context, string, ...string) (string, error) {
		return "", errors.New("exit status 1")
	}}
	if _, err := q.ForegroundApp(context.Background()); !errors.Is(err, ErrTransientQuery) {
		t.Fatalf("got %v, want ErrTransientQuery", err)
	}
}

func writeComm(t *testing.T, root, pid, name string) {
	t.Helper()
	dir := filepath.Join(root, pid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "comm"), []byte(name+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestX11Query(t *testing.T) {
	root := t.TempDir()
	writeComm(t, root, "101", "firefox")
	writeComm(t, root, "202", "code")

	q := &X11Query{ProcRoot: root, Runner: func(_ context.Context, name string, args ...string) (string, error) {
		switch name {
		case "xdotool":
			return "101\n", nil
		case "wmctrl":
			return "0x01 0 101 host Mozilla Firefox\n0x02 0 202 host main.go - Code\n0x03 -1 0 host desktop\n", nil
		}
		return "", errors.New("unexpected " + name)
	}}

	app, err := q.ForegroundApp(context.Background())
	if err != nil || app != "firefox" {
		t.Fatalf("ForegroundApp = %q, %v", app, err)
	}
	apps, err := q.RunningApps(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"code", "firefox"}; !reflect.DeepEqual(apps, want) {
		t.Errorf("RunningApps = %v, want %v", apps, want)
	}
}

func TestX11QueryMissingTool(t *testing.T) {
	q := &X11Query{Runner: func(context.Context, string, ...string) (string, error) {
		return "", &exec.Error{Name: "xdotool", Err: exec.ErrNotFound}
	}}
	if _, err := q.ForegroundApp(context.Background()); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("got %v, want ErrUnsupportedPlatform", err)
	}
}

func TestX11QueryRejectsMalformedPid(t *testing.T) {
	root := t.TempDir()
	// A readable comm outside the pid namespace must never be reached.
	writeComm(t, root, "etc", "passwd")

	for _, out := range []string{"../etc\n", "etc", "0", "-1", "12 34"} {
		q := &X11Query{ProcRoot: filepath.Join(root, "proc"), Runner: func(context.Context, string, ...string) (string, error) {
			return out, nil
		}}
		app, err := q.ForegroundApp(context.Background())
		if !errors.Is(err, ErrTransientQuery) || app != "" {
			t.Errorf("xdotool output %q: got %q, %v; want ErrTransientQuery", out, app, err)
		}
	}
}

func TestX11QueryVanishedProcess(t *testing.T) {
	q := &X11Query{ProcRoot: t.TempDir(), Runner: func(context.Context, string, ...string) (string, error) {
		return "999\n", nil
	}}
	if _, err := q.ForegroundApp(context.Background()); !errors.Is(err, ErrTransientQuery) {
		t.Fatalf("got %v, want ErrTransientQuery", err)
	}
}
