package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/moyu/internal/detector"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List running apps, marking the ones on the work whitelist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listApps(cmd, detector.ForPlatform(nil))
	},
}

func listApps(cmd *cobra.Command, q detector.Query) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	apps, err := q.RunningApps(ctx)
	if err != nil {
		if errors.Is(err, detector.ErrUnsupportedPlatform) {
			return errors.New("listing apps is not supported on this platform")
		}
		return err
	}
	s, err := loadSettings(cmd.Context())
	if err != nil {
		return err
	}
	for _, app := range apps {
		mark := " "
		if detector.IsWorkApp(app, s.WorkApps) {
			mark = "✓"
		}
		cmd.Printf("%s %s\n", mark, app)
	}
	if len(s.WorkApps) == 0 {
		cmd.Println("\nNo work apps yet. Add some with: moyu config set workApps \"Code,Terminal\"")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(appsCmd)
}
