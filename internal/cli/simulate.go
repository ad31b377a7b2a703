package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"auction-advisor/internal/app"
)

var (
	simulateDispatch bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <script.csv>",
	Short: "Replay a candidate,price,owner script through a fresh session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] == "" {
			return errors.New("script path must not be empty")
		}
		return getApp().Simulate(cmd.Context(), app.SimulateOptions{
			Script:   args[0],
			Dispatch: simulateDispatch,
			Out:      cmd.OutOrStdout(),
		})
	},
}

func init() {
	simulateCmd.Flags().BoolVar(&simulateDispatch, "dispatch", false, "Send alerts through the configured channels")
}
