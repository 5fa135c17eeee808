package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/moyu/internal/earnings"
	"github.com/fakeyudi/moyu/internal/events"
	"github.com/fakeyudi/moyu/internal/session"
	"github.com/fakeyudi/moyu/internal/worktimer"
)

const logLines = 6

// Controls are the actions the dashboard can trigger. Nil funcs disable
// their key.
type Controls struct {
	StartBreak  func(kind session.Kind) error
	StopBreak   func() error
	SetTracking func(enabled bool) error
}

// DashboardState seeds the dashboard before the first event arrives.
type DashboardState struct {
	Percent          float64
	RemainingMinutes int
	Tracking         bool
	Whitelist        []string
	Active           *session.ActiveBreak
	ListenURL        string
}

// DashboardModel shows the work timer, the detector and break results as
// they stream in from the event bus.
type DashboardModel struct {
	events   <-chan events.Event
	controls Controls
	now      func() time.Time

	percent   float64
	remaining int
	paused    bool
	tracking  bool
	whitelist []string
	listenURL string

	loafing   bool
	loafApp   string
	loafSince time.Time

	active *session.ActiveBreak
	last   *events.BreakResult
	log    []string
	err    string
	width  int
}

type eventMsg events.Event

type busClosedMsg struct{}

type clockMsg time.Time

type errMsg struct{ err error }

// NewDashboard builds the live dashboard reading from ch.
func NewDashboard(ch <-chan events.Event, controls Controls, state DashboardState) DashboardModel {
	return DashboardModel{
		events:    ch,
		controls:  controls,
		now:       time.Now,
		percent:   state.Percent,
		remaining: state.RemainingMinutes,
		tracking:  state.Tracking,
		whitelist: state.Whitelist,
		active:    state.Active,
		listenURL: state.ListenURL,
		width:     80,
	}
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return busClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func clockTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), clockTick())
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case clockMsg:
		return m, clockTick()

	case errMsg:
		m.err = msg.err.Error()
		return m, nil

	case busClosedMsg:
		return m, tea.Quit

	case eventMsg:
		m.apply(events.Event(msg))
		return m, waitForEvent(m.events)
	}
	return m, nil
}

func (m DashboardModel) handleKey(key string) (tea.Model, tea.Cmd) {
	m.err = ""
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "p", "u", "c":
		if m.controls.StartBreak == nil || m.active != nil {
			return m, nil
		}
		kind := map[string]session.Kind{"p": session.ManualPoop(), "u": session.FakeUpdate(), "c": session.FakeCoding()}[key]
		start := m.controls.StartBreak
		return m, func() tea.Msg {
			if err := start(kind); err != nil {
				return errMsg{err}
			}
			return nil
		}
	case "s", "enter":
		if m.controls.StopBreak == nil || m.active == nil {
			return m, nil
		}
		stop := m.controls.StopBreak
		return m, func() tea.Msg {
			if err := stop(); err != nil {
				return errMsg{err}
			}
			return nil
		}
	case "t":
		if m.controls.SetTracking == nil {
			return m, nil
		}
		want := !m.tracking
		if err := m.controls.SetTracking(want); err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.tracking = want
		if !want {
			m.loafing = false
		}
		m.addLog("tracking " + map[bool]string{true: "on", false: "off"}[want])
	}
	return m, nil
}

// apply folds one bus event into the model.
func (m *DashboardModel) apply(ev events.Event) {
	switch data := ev.Data.(type) {
	case events.TimerProgress:
		m.percent = data.Percent
		m.remaining = data.RemainingMinutes
		m.paused = data.Paused
	case events.DetectorState:
		m.loafing = data.Loafing
		m.loafApp = data.App
		m.loafSince = data.Since
		if data.Loafing {
			m.addLog(fmt.Sprintf("%s  drifted to %s", ev.At.Format("15:04"), data.App))
		}
	case events.BreakStarted:
		k, err := session.ParseKind(data.Kind)
		if err == nil {
			m.active = &session.ActiveBreak{Kind: k, StartedAt: ev.At}
		}
		m.addLog(fmt.Sprintf("%s  %s started", ev.At.Format("15:04"), data.Label))
	case events.BreakResult:
		res := data
		m.last = &res
		if data.Kind != string(session.KindAutoDetected) {
			m.active = nil
		}
		line := fmt.Sprintf("%s  %s  %s  %s", ev.At.Format("15:04"), data.Label,
			session.FormatDuration(secs(data.DurationSeconds)), earnings.Format(data.Earned, data.Currency))
		if data.Reward != nil {
			line += "  " + data.Reward.Glyph
		}
		m.addLog(line)
	}
	if ev.Type == events.TypeBreakDue {
		m.addLog(fmt.Sprintf("%s  %s time for a break", ev.At.Format("15:04"), worktimer.BellGlyph))
	}
}

func (m *DashboardModel) addLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > logLines {
		m.log = m.log[len(m.log)-logLines:]
	}
}

func (m DashboardModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Width(m.width).Render("  moyu  " + worktimer.Indicator(m.remaining)))
	sb.WriteString("\n")

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-10s", label)) + "  " + value + "\n")
	}

	sb.WriteString(heading("Work"))
	barWidth := max(min(m.width-20, 50), 10)
	state := fmt.Sprintf("%3.0f%%", m.percent)
	if m.paused {
		state += "  break due"
	}
	row("Interval:", bar(m.percent/100, barWidth)+" "+state)

	sb.WriteString(heading("Break"))
	now := m.now()
	switch {
	case m.active != nil:
		row("Now:", m.active.Kind.Label()+"  "+timeStyle.Render(session.FormatDuration(now.Sub(m.active.StartedAt))))
	case m.loafing:
		row("Now:", "👀 "+m.loafApp+"  "+timeStyle.Render(session.FormatDuration(now.Sub(m.loafSince))))
	default:
		row("Now:", dimStyle.Render("working"))
	}
	tracking := "on"
	if !m.tracking {
		tracking = "off"
	} else if len(m.whitelist) == 0 {
		tracking = "on, but no work apps configured"
	}
	row("Auto:", tracking)
	if m.last != nil {
		catch := "no catch"
		if m.last.Reward != nil {
			catch = fmt.Sprintf("%s %s (%s)", m.last.Reward.Glyph, m.last.Reward.Name, m.last.Reward.Rarity)
		}
		row("Last:", fmt.Sprintf("%s  %s  %s",
			session.FormatDuration(secs(m.last.DurationSeconds)),
			moneyStyle.Render(earnings.Format(m.last.Earned, m.last.Currency)), catch))
	}
	if m.listenURL != "" {
		row("Bridge:", m.listenURL)
	}

	sb.WriteString(heading("Recent"))
	if len(m.log) == 0 {
		sb.WriteString(dimStyle.Render("  (nothing yet)") + "\n")
	}
	for _, l := range m.log {
		sb.WriteString("  " + l + "\n")
	}

	if m.err != "" {
		sb.WriteString("\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("  "+m.err) + "\n")
	}
	hint := "  p poop  u fake update  c fake coding  s stop  t tracking  q quit"
	sb.WriteString("\n" + statusBarStyle.Width(m.width).Render(hint))
	return sb.String()
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// RunDashboard runs the dashboard until the user quits or the bus closes.
func RunDashboard(m DashboardModel) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
