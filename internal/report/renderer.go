package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/fakeyudi/moyu/internal/earnings"
	"github.com/fakeyudi/moyu/internal/session"
)

// Renderer serializes a Report to bytes.
type Renderer interface {
	Render(rep *Report) ([]byte, error)
}

// Formats accepted by RendererFor.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatYAML     = "yaml"
)

// RendererFor returns the renderer for format.
func RendererFor(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", FormatTable:
		return &TableRenderer{}, nil
	case FormatJSON:
		return &JSONRenderer{}, nil
	case FormatMarkdown, "md":
		return &MarkdownRenderer{}, nil
	case FormatYAML, "yml":
		return &YAMLRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want table, json, markdown or yaml)", format)
	}
}

// JSONRenderer renders a Report as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(rep *Report) ([]byte, error) {
	return json.MarshalIndent(rep, "", "  ")
}

// YAMLRenderer renders a Report as YAML.
type YAMLRenderer struct{}

func (r *YAMLRenderer) Render(rep *Report) ([]byte, error) {
	out, err := yaml.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return out, nil
}

// MarkdownRenderer renders a Report as a human-readable document.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(rep *Report) ([]byte, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Loafing report: %s of %s\n\n", rep.Range, rep.From.Format("2006-01-02"))

	// ## Summary
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Total: %s over %d breaks\n", seconds(rep.TotalSeconds), rep.SessionCount)
	fmt.Fprintf(&sb, "- Paid to loaf: %s\n", earnings.Format(rep.Earned, rep.Currency))
	fmt.Fprintf(&sb, "- All time: %s\n", seconds(rep.AllTimeSeconds))
	sb.WriteString("\n")

	// ## By Kind
	sb.WriteString("## By Kind\n\n")
	if len(rep.Breakdown) == 0 {
		sb.WriteString("_No breaks in this window._\n")
	} else {
		sb.WriteString("| Kind | Breaks | Time |\n")
		sb.WriteString("|------|--------|------|\n")
		for _, b := range rep.Breakdown {
			fmt.Fprintf(&sb, "| %s | %d | %s |\n", b.Label, b.Count, seconds(b.Seconds))
		}
	}
	sb.WriteString("\n")

	// ## Timeline
	sb.WriteString("## Timeline\n\n")
	if len(rep.Buckets) == 0 {
		sb.WriteString("_Nothing recorded yet._\n")
	} else {
		sb.WriteString("| When | Breaks | Time |\n")
		sb.WriteString("|------|--------|------|\n")
		for _, b := range rep.Buckets {
			fmt.Fprintf(&sb, "| %s | %d | %s |\n", b.Label, b.Count, seconds(b.Seconds))
		}
	}
	sb.WriteString("\n")

	return []byte(sb.String()), nil
}

// TableRenderer draws the report for a terminal.
type TableRenderer struct{}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func (r *TableRenderer) Render(rep *Report) ([]byte, error) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("When", "Breaks", "Time", "Mostly").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, b := range rep.Buckets {
		if rep.Range != Day && b.Count == 0 {
			continue
		}
		top := ""
		if len(b.Breakdown) > 0 {
			top = b.Breakdown[0].Label
		}
		t.Row(b.Label, fmt.Sprint(b.Count), seconds(b.Seconds), top)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "This %s: %s over %d breaks, %s\n",
		rep.Range, seconds(rep.TotalSeconds), rep.SessionCount, earnings.Format(rep.Earned, rep.Currency))
	if rep.SessionCount == 0 {
		sb.WriteString("No breaks recorded yet. Go on, you've earned one.\n")
		return []byte(sb.String()), nil
	}
	sb.WriteString(t.String())
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "All time: %s\n", seconds(rep.AllTimeSeconds))
	return []byte(sb.String()), nil
}

func seconds(s float64) string {
	return session.FormatDuration(secondsDuration(s))
}
