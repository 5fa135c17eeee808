// Package report aggregates the break ledger into calendar windows and
// renders the result for the terminal or for export.
package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fakeyudi/moyu/internal/earnings"
	"github.com/fakeyudi/moyu/internal/session"
)

// Range is a reporting window ending now.
type Range string

const (
	Day   Range = "day"
	Week  Range = "week"
	Month Range = "month"
	Year  Range = "year"
)

// Ranges lists the windows in display order.
func Ranges() []Range {
	return []Range{Day, Week, Month, Year}
}

// ParseRange accepts day, week, month or year.
func ParseRange(s string) (Range, error) {
	r := Range(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Ranges(), r) {
		return r, nil
	}
	return "", fmt.Errorf("unknown range %q (want day, week, month or year)", s)
}

// Breakdown totals one kind of break.
type Breakdown struct {
	Kind    string  `json:"kind" yaml:"kind"`
	Label   string  `json:"label" yaml:"label"`
	Seconds float64 `json:"seconds" yaml:"seconds"`
	Count   int     `json:"count" yaml:"count"`
}

// Bucket is one row of a report: a single break for the day view, a day
// for week and month, a month for year.
type Bucket struct {
	Label     string      `json:"label" yaml:"label"`
	Start     time.Time   `json:"start" yaml:"start"`
	End       time.Time   `json:"end" yaml:"end"`
	Seconds   float64     `json:"seconds" yaml:"seconds"`
	Count     int         `json:"count" yaml:"count"`
	Breakdown []Breakdown `json:"breakdown,omitempty" yaml:"breakdown,omitempty"`
}

// Report is an aggregated view of one window.
type Report struct {
	Range          Range       `json:"range" yaml:"range"`
	From           time.Time   `json:"from" yaml:"from"`
	To             time.Time   `json:"to" yaml:"to"`
	Buckets        []Bucket    `json:"buckets" yaml:"buckets"`
	TotalSeconds   float64     `json:"total_seconds" yaml:"total_seconds"`
	SessionCount   int         `json:"session_count" yaml:"session_count"`
	Breakdown      []Breakdown `json:"breakdown" yaml:"breakdown"`
	Earned         float64     `json:"earned" yaml:"earned"`
	Currency       string      `json:"currency,omitempty" yaml:"currency,omitempty"`
	AllTimeSeconds float64     `json:"all_time_seconds" yaml:"all_time_seconds"`
}

// WindowStart is the first instant of r containing now. Weeks start on
// Monday.
func WindowStart(r Range, now time.Time) time.Time {
	y, m, d := now.Date()
	loc := now.Location()
	switch r {
	case Week:
		offset := (int(now.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case Year:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// Build aggregates sessions (any order) into a report for r. allTime is the
// ledger's running total and comp prices the window.
func Build(r Range, now time.Time, sessions []session.BreakSession, allTime float64, comp earnings.Compensation) Report {
	from := WindowStart(r, now)
	rep := Report{
		Range:          r,
		From:           from,
		To:             now,
		Currency:       comp.CurrencySymbol,
		AllTimeSeconds: allTime,
	}

	var inWindow []session.BreakSession
	for _, s := range sessions {
		if !s.StartedAt.Before(from) {
			inWindow = append(inWindow, s)
		}
	}
	slices.SortFunc(inWindow, func(a, b session.BreakSession) int {
		return b.StartedAt.Compare(a.StartedAt)
	})

	if r == Day {
		for _, s := range inWindow {
			rep.Buckets = append(rep.Buckets, Bucket{
				Label:     s.StartedAt.In(now.Location()).Format("15:04") + " " + s.Kind.Label(),
				Start:     s.StartedAt,
				End:       s.EndedAt(),
				Seconds:   s.DurationSeconds,
				Count:     1,
				Breakdown: breakdown([]session.BreakSession{s}),
			})
		}
	} else {
		for _, b := range calendarBuckets(r, from) {
			var in []session.BreakSession
			for _, s := range inWindow {
				if !s.StartedAt.Before(b.Start) && s.StartedAt.Before(b.End) {
					in = append(in, s)
				}
			}
			b.Count = len(in)
			for _, s := range in {
				b.Seconds += s.DurationSeconds
			}
			b.Breakdown = breakdown(in)
			rep.Buckets = append(rep.Buckets, b)
		}
	}

	for _, s := range inWindow {
		rep.TotalSeconds += s.DurationSeconds
	}
	rep.SessionCount = len(inWindow)
	rep.Breakdown = breakdown(inWindow)
	rep.Earned = earnings.Earned(rep.TotalSeconds, comp)
	return rep
}

// calendarBuckets splits the window starting at from into days or months.
func calendarBuckets(r Range, from time.Time) []Bucket {
	var out []Bucket
	switch r {
	case Week:
		for i := range 7 {
			start := from.AddDate(0, 0, i)
			out = append(out, Bucket{Label: start.Format("Mon 02"), Start: start, End: start.AddDate(0, 0, 1)})
		}
	case Month:
		for start := from; start.Month() == from.Month(); start = start.AddDate(0, 0, 1) {
			out = append(out, Bucket{Label: start.Format("Jan 02"), Start: start, End: start.AddDate(0, 0, 1)})
		}
	case Year:
		for i := range 12 {
			start := from.AddDate(0, i, 0)
			out = append(out, Bucket{Label: start.Format("Jan 2006"), Start: start, End: start.AddDate(0, 1, 0)})
		}
	}
	return out
}

// breakdown groups sessions by label, longest total first.
func breakdown(sessions []session.BreakSession) []Breakdown {
	index := map[string]int{}
	var out []Breakdown
	for _, s := range sessions {
		label := s.Kind.Label()
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, Breakdown{Kind: string(s.Kind.Type), Label: label})
		}
		out[i].Seconds += s.DurationSeconds
		out[i].Count++
	}
	slices.SortStableFunc(out, func(a, b Breakdown) int {
		switch {
		case a.Seconds > b.Seconds:
			return -1
		case a.Seconds < b.Seconds:
			return 1
		}
		return 0
	})
	return out
}
