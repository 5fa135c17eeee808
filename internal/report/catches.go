package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/fakeyudi/moyu/internal/reward"
)

// RenderCatches draws the per-rarity tally followed by the latest catches,
// newest first, limited to recent entries.
func RenderCatches(catches []reward.Catch, tiers []reward.Tier, recent int) string {
	var sb strings.Builder
	if len(catches) == 0 {
		sb.WriteString("Nothing caught yet. Longer breaks bite more often.\n")
		return sb.String()
	}

	tally := table.New().Border(lipgloss.RoundedBorder()).Headers("", "Fish", "Rarity", "Caught")
	for _, rc := range reward.CountByRarity(catches, tiers) {
		tally.Row(rc.Tier.Glyph, rc.Tier.Name, rc.Tier.Rarity, fmt.Sprint(rc.Count))
	}
	sb.WriteString(tally.String())
	sb.WriteString("\n")

	if recent <= 0 || recent > len(catches) {
		recent = len(catches)
	}
	fmt.Fprintf(&sb, "Latest %d:\n", recent)
	for i := len(catches) - 1; i >= len(catches)-recent; i-- {
		c := catches[i]
		fmt.Fprintf(&sb, "  %s %-10s %-9s %s after %s\n",
			c.Glyph, c.Name, c.Rarity, c.CaughtAt.Local().Format("Jan 02 15:04"), seconds(c.SessionDuration))
	}
	return sb.String()
}

func secondsDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
