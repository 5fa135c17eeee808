package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fakeyudi/moyu/internal/earnings"
	"github.com/fakeyudi/moyu/internal/reward"
	"github.com/fakeyudi/moyu/internal/session"
)

// Wednesday 2026-03-04 15:30 local.
var now = time.Date(2026, 3, 4, 15, 30, 0, 0, time.Local)

func at(day, hour int) time.Time {
	return time.Date(2026, 3, day, hour, 0, 0, 0, time.Local)
}

func fixture() []session.BreakSession {
	return []session.BreakSession{
		session.New(session.ManualPoop(), at(4, 10), 10*time.Minute),
		session.New(session.AutoDetected("Safari"), at(4, 9), 5*time.Minute),
		session.New(session.AutoDetected("Safari"), at(3, 11), 20*time.Minute),
		session.New(session.FakeCoding(), at(2, 14), 2*time.Minute),    // Monday
		session.New(session.FakeUpdate(), at(1, 14), 3*time.Minute),    // Sunday, last week
		session.New(session.ManualPoop(), time.Date(2026, 1, 15, 9, 0, 0, 0, time.Local), time.Hour),
	}
}

func TestWindowStart(t *testing.T) {
	cases := map[Range]time.Time{
		Day:   at(4, 0),
		Week:  at(2, 0),
		Month: at(1, 0),
		Year:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local),
	}
	for r, want := range cases {
		if got := WindowStart(r, now); !got.Equal(want) {
			t.Errorf("WindowStart(%s) = %v, want %v", r, got, want)
		}
	}
	sunday := time.Date(2026, 3, 8, 12, 0, 0, 0, time.Local)
	if got := WindowStart(Week, sunday); !got.Equal(at(2, 0)) {
		t.Errorf("week of a Sunday starts %v, want Monday the 2nd", got)
	}
}

func TestBuildDay(t *testing.T) {
	rep := Build(Day, now, fixture(), 9999, earnings.Defaults())
	if rep.SessionCount != 2 || rep.TotalSeconds != 900 {
		t.Fatalf("day: %d sessions, %v s", rep.SessionCount, rep.TotalSeconds)
	}
	if len(rep.Buckets) != 2 || !rep.Buckets[0].Start.Equal(at(4, 10)) {
		t.Errorf("day buckets should be newest first: %+v", rep.Buckets)
	}
	if rep.AllTimeSeconds != 9999 {
		t.Errorf("all time: %v", rep.AllTimeSeconds)
	}
	if want := earnings.Earned(900, earnings.Defaults()); rep.Earned != want {
		t.Errorf("earned: got %v want %v", rep.Earned, want)
	}
}

func TestBuildWeek(t *testing.T) {
	rep := Build(Week, now, fixture(), 0, earnings.Defaults())
	if len(rep.Buckets) != 7 {
		t.Fatalf("week has %d buckets", len(rep.Buckets))
	}
	if rep.SessionCount != 4 {
		t.Errorf("week sessions: got %d, want 4", rep.SessionCount)
	}
	if rep.Buckets[0].Count != 1 || rep.Buckets[1].Count != 1 || rep.Buckets[2].Count != 2 {
		t.Errorf("per-day counts: %d %d %d", rep.Buckets[0].Count, rep.Buckets[1].Count, rep.Buckets[2].Count)
	}
	// Safari: 25 min beats poop 10 min and coding 2 min.
	if rep.Breakdown[0].Label != session.AutoDetected("Safari").Label() || rep.Breakdown[0].Count != 2 {
		t.Errorf("breakdown should lead with Safari: %+v", rep.Breakdown)
	}
}

func TestBuildMonthAndYear(t *testing.T) {
	month := Build(Month, now, fixture(), 0, earnings.Defaults())
	if len(month.Buckets) != 31 {
		t.Errorf("March has %d buckets", len(month.Buckets))
	}
	if month.SessionCount != 5 {
		t.Errorf("month sessions: got %d", month.SessionCount)
	}

	year := Build(Year, now, fixture(), 0, earnings.Defaults())
	if len(year.Buckets) != 12 {
		t.Fatalf("year has %d buckets", len(year.Buckets))
	}
	if year.Buckets[0].Count != 1 || year.Buckets[2].Count != 5 {
		t.Errorf("Jan %d, Mar %d", year.Buckets[0].Count, year.Buckets[2].Count)
	}
	if year.TotalSeconds != 3600+40*60 {
		t.Errorf("year total %v", year.TotalSeconds)
	}
}

func TestParseRange(t *testing.T) {
	if r, err := ParseRange(" Week "); err != nil || r != Week {
		t.Errorf("got %v %v", r, err)
	}
	if _, err := ParseRange("fortnight"); err == nil {
		t.Error("fortnight accepted")
	}
}

func TestRenderers(t *testing.T) {
	rep := Build(Week, now, fixture(), 7200, earnings.Defaults())

	out, err := (&JSONRenderer{}).Render(&rep)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("json: %v", err)
	}
	if decoded["range"] != "week" {
		t.Errorf("json range: %v", decoded["range"])
	}

	out, err = (&YAMLRenderer{}).Render(&rep)
	if err != nil {
		t.Fatal(err)
	}
	var y map[string]any
	if err := yaml.Unmarshal(out, &y); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if y["session_count"] != 4 {
		t.Errorf("yaml session_count: %v", y["session_count"])
	}

	out, _ = (&MarkdownRenderer{}).Render(&rep)
	for _, want := range []string{"## Summary", "## By Kind", "## Timeline", "4 breaks"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	out, _ = (&TableRenderer{}).Render(&rep)
	if !strings.Contains(string(out), "Safari") || !strings.Contains(string(out), "All time: 2h 0m") {
		t.Errorf("table output:\n%s", out)
	}
}

func TestRendererFor(t *testing.T) {
	for _, f := range []string{"", "table", "json", "markdown", "md", "yaml", "yml"} {
		if _, err := RendererFor(f); err != nil {
			t.Errorf("RendererFor(%q): %v", f, err)
		}
	}
	if _, err := RendererFor("pdf"); err == nil {
		t.Error("pdf accepted")
	}
}

func TestEmptyReport(t *testing.T) {
	rep := Build(Day, now, nil, 0, earnings.Defaults())
	out, _ := (&TableRenderer{}).Render(&rep)
	if !strings.Contains(string(out), "No breaks recorded yet") {
		t.Errorf("empty table: %s", out)
	}
	md, _ := (&MarkdownRenderer{}).Render(&rep)
	if !strings.Contains(string(md), "_No breaks in this window._") {
		t.Errorf("empty markdown: %s", md)
	}
}

func TestRenderCatches(t *testing.T) {
	if out := RenderCatches(nil, reward.DefaultTiers, 5); !strings.Contains(out, "Nothing caught") {
		t.Errorf("empty: %s", out)
	}
	tiers := reward.DefaultTiers
	catches := []reward.Catch{
		reward.NewCatch(reward.Reward{Rarity: tiers[0].Rarity, Glyph: tiers[0].Glyph, Name: tiers[0].Name, DurationSeconds: 60}, now.Add(-time.Hour)),
		reward.NewCatch(reward.Reward{Rarity: tiers[3].Rarity, Glyph: tiers[3].Glyph, Name: tiers[3].Name, DurationSeconds: 2400}, now),
	}
	out := RenderCatches(catches, tiers, 1)
	if !strings.Contains(out, "Latest 1:") || !strings.Contains(out, tiers[3].Name+" ") {
		t.Errorf("catches:\n%s", out)
	}
}
