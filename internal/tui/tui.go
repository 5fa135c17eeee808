// Package tui provides the Bubble Tea live dashboard and the stats viewer.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/moyu/internal/earnings"
	"github.com/fakeyudi/moyu/internal/report"
	"github.com/fakeyudi/moyu/internal/session"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("30")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("30")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	moneyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Bold(true)

	barFullStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	barEmptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabDay tabID = iota
	tabWeek
	tabMonth
	tabYear
	tabCatches
	tabCount
)

var tabNames = [tabCount]string{"Day", "Week", "Month", "Year", "Catches"}

var tabRanges = [tabCatches]report.Range{report.Day, report.Week, report.Month, report.Year}

// ── Model ────────────────────

// StatsModel is a tabbed viewer over precomputed reports.
type StatsModel struct {
	reports   map[report.Range]*report.Report
	catches   string
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
}

// NewStats creates the viewer. catches is pre-rendered text for the last tab.
func NewStats(reports map[report.Range]*report.Report, catches string, initial report.Range) StatsModel {
	m := StatsModel{reports: reports, catches: catches}
	for i, r := range tabRanges {
		if r == initial {
			m.activeTab = tabID(i)
		}
	}
	return m
}

// ── Bubble Tea interface ───────────────

func (m StatsModel) Init() tea.Cmd { return nil }

func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1", "2", "3", "4", "5":
			m.activeTab = tabID(msg.String()[0] - '1')
			return m, nil
		}
		if !m.ready {
			return m, nil
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m StatsModel) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  moyu  loafing stats")

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-5 jump  q quit"
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := max(m.width-lipgloss.Width(hint)-len(pct)-2, 1)
	statusBar := statusBarStyle.Width(m.width).Render(hint + strings.Repeat(" ", pad) + pct)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *StatsModel) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := max(m.height-3, 1)
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *StatsModel) renderTab(t tabID) string {
	if t == tabCatches {
		return heading("Catches") + indent(m.catches, "  ")
	}
	rep := m.reports[tabRanges[t]]
	if rep == nil {
		return heading(tabNames[t]) + dimStyle.Render("  (no data)") + "\n"
	}
	return renderReport(rep, m.width)
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func renderReport(rep *report.Report, width int) string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("This %s since %s", rep.Range, rep.From.Format("Mon Jan 02"))))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("Loafed:", session.FormatDuration(secs(rep.TotalSeconds)))
	row("Breaks:", fmt.Sprintf("%d", rep.SessionCount))
	row("Paid:", moneyStyle.Render(earnings.Format(rep.Earned, rep.Currency)))
	row("All time:", session.FormatDuration(secs(rep.AllTimeSeconds)))

	if len(rep.Breakdown) > 0 {
		sb.WriteString(heading("By kind"))
		for _, b := range rep.Breakdown {
			sb.WriteString(fmt.Sprintf("  %-28s %3d×  %s\n", b.Label, b.Count, session.FormatDuration(secs(b.Seconds))))
		}
	}

	sb.WriteString(heading("Timeline"))
	if rep.SessionCount == 0 {
		sb.WriteString(dimStyle.Render("  (no breaks in this window)") + "\n")
		return sb.String()
	}
	var peak float64
	for _, b := range rep.Buckets {
		peak = max(peak, b.Seconds)
	}
	barWidth := max(min(width-40, 40), 10)
	for _, b := range rep.Buckets {
		if rep.Range == report.Day {
			sb.WriteString("  " + timeStyle.Render(b.Label) + "  " + session.FormatDuration(secs(b.Seconds)) + "\n")
			continue
		}
		ratio := 0.0
		if peak > 0 {
			ratio = b.Seconds / peak
		}
		sb.WriteString(fmt.Sprintf("  %-9s %s %s\n",
			b.Label, bar(ratio, barWidth), dimStyle.Render(session.FormatDuration(secs(b.Seconds)))))
	}
	return sb.String()
}

// bar draws a horizontal gauge filled to ratio.
func bar(ratio float64, width int) string {
	ratio = min(max(ratio, 0), 1)
	filled := int(ratio*float64(width) + 0.5)
	return barFullStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", width-filled))
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

// RunStats starts the stats viewer.
func RunStats(reports map[report.Range]*report.Report, catches string, initial report.Range) error {
	p := tea.NewProgram(NewStats(reports, catches, initial), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
