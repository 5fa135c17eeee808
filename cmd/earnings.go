package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/moyu/internal/earnings"
	"github.com/fakeyudi/moyu/internal/session"
)

var earningsCmd = &cobra.Command{
	Use:   "earnings",
	Short: "Show total break time and what it was worth",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		total, err := ledger().TotalAccumulatedSeconds(ctx)
		if err != nil {
			return err
		}
		s, err := loadSettings(ctx)
		if err != nil {
			return err
		}
		comp := s.Compensation

		cmd.Printf("Total loafing: %s\n", session.FormatDuration(time.Duration(total*float64(time.Second))))
		if err := comp.Validate(); err != nil {
			cmd.Printf("Earned:        %s\n", earnings.Format(0, comp.CurrencySymbol))
			cmd.Println("  Set salary, workDays and workHours with 'moyu config set' to price your breaks.")
			return nil
		}
		cmd.Printf("Earned:        %s\n", earnings.Format(earnings.Earned(total, comp), comp.CurrencySymbol))
		cmd.Printf("Hourly rate:   %s\n", earnings.Format(earnings.HourlyRate(comp), comp.CurrencySymbol))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(earningsCmd)
}
