package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/moyu/internal/report"
	"github.com/fakeyudi/moyu/internal/reward"
	"github.com/fakeyudi/moyu/internal/tui"
)

// recentCatches is how many catches the catches view lists individually.
const recentCatches = 10

var (
	statsRange  string
	statsFormat string
	statsTUI    bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize break time for a day, week, month or year",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := report.ParseRange(statsRange)
		if err != nil {
			return err
		}
		now := time.Now()

		if statsTUI {
			reports := make(map[report.Range]*report.Report, len(report.Ranges()))
			for _, rr := range report.Ranges() {
				rep, err := buildReport(ctx, rr, now)
				if err != nil {
					return err
				}
				reports[rr] = rep
			}
			catches, err := catchesText(ctx)
			if err != nil {
				return err
			}
			return tui.RunStats(reports, catches, r)
		}

		renderer, err := report.RendererFor(statsFormat)
		if err != nil {
			return err
		}
		rep, err := buildReport(ctx, r, now)
		if err != nil {
			return err
		}
		out, err := renderer.Render(rep)
		if err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

// buildReport aggregates the ledger for r as of now.
func buildReport(ctx context.Context, r report.Range, now time.Time) (*report.Report, error) {
	l := ledger()
	sessions, err := l.SessionsSince(ctx, report.WindowStart(r, now))
	if err != nil {
		return nil, err
	}
	total, err := l.TotalAccumulatedSeconds(ctx)
	if err != nil {
		return nil, err
	}
	s, err := loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	rep := report.Build(r, now, sessions, total, s.Compensation)
	return &rep, nil
}

// catchesText renders the collection for the catches command and tab.
func catchesText(ctx context.Context) (string, error) {
	catches, err := reward.NewCollection(store).List(ctx)
	if err != nil {
		return "", err
	}
	return report.RenderCatches(catches, reward.DefaultTiers, recentCatches), nil
}

func init() {
	statsCmd.Flags().StringVarP(&statsRange, "range", "r", string(report.Day), "day, week, month or year")
	statsCmd.Flags().StringVarP(&statsFormat, "format", "f", report.FormatTable, "table, json, markdown or yaml")
	statsCmd.Flags().BoolVar(&statsTUI, "tui", false, "browse every range in an interactive viewer")
	rootCmd.AddCommand(statsCmd)
}
