package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"auction-advisor/internal/app"
)

var (
	showAlerts int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display slots, statistics and rivals of a stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showAlerts < 0 {
			return fmt.Errorf("--alerts must not be negative")
		}

		opts := app.ShowOptions{
			SessionID: sessionID,
			Alerts:    showAlerts,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showAlerts, "alerts", 10, "Number of delivered alerts to display")
}
