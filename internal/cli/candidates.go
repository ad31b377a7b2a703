package cli

import (
	"github.com/spf13/cobra"

	"auction-advisor/internal/app"
)

var (
	candidatesPosition string
	candidatesLimit    int
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List the best unsold candidates with suggested prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Candidates(cmd.Context(), app.CandidatesOptions{
			SessionID: sessionID,
			Position:  candidatesPosition,
			Limit:     candidatesLimit,
			Out:       cmd.OutOrStdout(),
		})
	},
}

func init() {
	candidatesCmd.Flags().StringVar(&candidatesPosition, "position", "", "Filter by position (P, D, C, A)")
	candidatesCmd.Flags().IntVar(&candidatesLimit, "limit", 20, "Number of candidates to list")
}
