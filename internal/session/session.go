package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-day format of BreakSession.RecordedOn.
const DateLayout = "2006-01-02"

// KindType discriminates the variants of Kind.
type KindType string

const (
	KindManualPoop   KindType = "poop"
	KindFakeUpdate   KindType = "fake-update"
	KindFakeCoding   KindType = "fake-coding"
	KindAutoDetected KindType = "auto"
)

// Kind says how a break came about. App is set only for AutoDetected and
// names the application the user was in while away from work.
type Kind struct {
	Type KindType `json:"type"`
	App  string   `json:"app,omitempty"`
}

func ManualPoop() Kind { return Kind{Type: KindManualPoop} }
func FakeUpdate() Kind { return Kind{Type: KindFakeUpdate} }
func FakeCoding() Kind { return Kind{Type: KindFakeCoding} }

func AutoDetected(app string) Kind {
	return Kind{Type: KindAutoDetected, App: app}
}

// ParseKind maps a CLI name to one of the explicit break kinds. Auto-detected
// breaks are never started by hand.
func ParseKind(name string) (Kind, error) {
	switch KindType(name) {
	case KindManualPoop:
		return ManualPoop(), nil
	case KindFakeUpdate:
		return FakeUpdate(), nil
	case KindFakeCoding:
		return FakeCoding(), nil
	default:
		return Kind{}, fmt.Errorf("unknown break kind %q (want poop, fake-update or fake-coding)", name)
	}
}

// Label is the display form used in history listings.
func (k Kind) Label() string {
	switch k.Type {
	case KindManualPoop:
		return "💩 Paid poop"
	case KindFakeUpdate:
		return "🖥️ Fake update"
	case KindFakeCoding:
		return "⌨️ Fake coding"
	case KindAutoDetected:
		return "👀 " + k.App
	default:
		return string(k.Type)
	}
}

// BreakSession is one completed break. It is created when the break ends and
// never modified afterwards.
type BreakSession struct {
	ID              string    `json:"id"`
	Kind            Kind      `json:"kind"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	RecordedOn      string    `json:"recorded_on"`
}

// New builds a BreakSession for a break of kind that started at startedAt and
// lasted d. Negative durations are clamped to zero.
func New(kind Kind, startedAt time.Time, d time.Duration) BreakSession {
	if d < 0 {
		d = 0
	}
	return BreakSession{
		ID:              newID(),
		Kind:            kind,
		StartedAt:       startedAt,
		DurationSeconds: d.Seconds(),
		RecordedOn:      startedAt.Add(d).Local().Format(DateLayout),
	}
}

// Duration returns DurationSeconds as a time.Duration.
func (s BreakSession) Duration() time.Duration {
	return time.Duration(s.DurationSeconds * float64(time.Second))
}

// EndedAt is StartedAt plus the duration.
func (s BreakSession) EndedAt() time.Time {
	return s.StartedAt.Add(s.Duration())
}

// newID returns a time-ordered UUID so ids sort by creation.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// FormatDuration renders whole seconds as "45s", "12m 3s" or "1h 4m".
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
