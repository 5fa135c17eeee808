package profile

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/fakeyudi/moyu/internal/kv"
	"github.com/fakeyudi/moyu/internal/settings"
)

func TestRunSetupAnswers(t *testing.T) {
	in := strings.NewReader("20000\n21\n7.5\n$\nCode, Terminal ,,\nn\n")
	var out bytes.Buffer

	got, err := RunSetup(in, &out, settings.Defaults(), []string{"Code", "Safari", "Terminal"})
	if err != nil {
		t.Fatalf("RunSetup: %v", err)
	}
	c := got.Compensation
	if c.MonthlySalary != 20000 || c.WorkDaysPerMonth != 21 || c.WorkHoursPerDay != 7.5 || c.CurrencySymbol != "$" {
		t.Errorf("compensation: got %+v", c)
	}
	if !slices.Equal(got.WorkApps, []string{"Code", "Terminal"}) {
		t.Errorf("work apps: got %v", got.WorkApps)
	}
	if got.TrackingEnabled {
		t.Error("tracking should be off")
	}
	if !strings.Contains(out.String(), "Running apps: Code, Safari, Terminal") {
		t.Errorf("suggestions not shown:\n%s", out.String())
	}
}

func TestRunSetupKeepsDefaults(t *testing.T) {
	existing := settings.Defaults()
	existing.WorkApps = []string{"Xcode"}
	in := strings.NewReader("\n\n\n\n\n\n")

	got, err := RunSetup(in, &bytes.Buffer{}, existing, nil)
	if err != nil {
		t.Fatalf("RunSetup: %v", err)
	}
	if got.Compensation != existing.Compensation {
		t.Errorf("compensation: got %+v, want %+v", got.Compensation, existing.Compensation)
	}
	if !slices.Equal(got.WorkApps, []string{"Xcode"}) || !got.TrackingEnabled {
		t.Errorf("got %+v", got)
	}
}

func TestRunSetupRepromptsBadNumber(t *testing.T) {
	in := strings.NewReader("lots\n-5\n15000\n\n\n\n\n\n")
	var out bytes.Buffer

	got, err := RunSetup(in, &out, settings.Defaults(), nil)
	if err != nil {
		t.Fatalf("RunSetup: %v", err)
	}
	if got.Compensation.MonthlySalary != 15000 {
		t.Errorf("salary: got %v", got.Compensation.MonthlySalary)
	}
	if n := strings.Count(out.String(), "positive number"); n != 2 {
		t.Errorf("re-prompts: got %d, want 2", n)
	}
}

func TestRunSetupEOF(t *testing.T) {
	existing := settings.Defaults()
	if _, err := RunSetup(strings.NewReader("12000\n"), &bytes.Buffer{}, existing, nil); err == nil {
		t.Fatal("expected an error when input ends early")
	}
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	if Exists(ctx, store) {
		t.Fatal("fresh store should not count as set up")
	}
	if err := settings.Save(ctx, store, settings.Defaults()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !Exists(ctx, store) {
		t.Fatal("saved settings should count as set up")
	}
}
