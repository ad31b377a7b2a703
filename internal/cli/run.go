package cli

import (
	"github.com/spf13/cobra"

	"auction-advisor/internal/app"
)

var (
	runFresh    bool
	runHeadless bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a live auction session with the interactive console",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), app.RunOptions{
			SessionOptions: app.SessionOptions{ID: sessionID, Resume: !runFresh},
			Headless:       runHeadless,
		})
	},
}

func init() {
	runCmd.Flags().BoolVar(&runFresh, "fresh", false, "Start a new session instead of resuming the latest")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Disable the stdin console and only run analysis passes")
}
