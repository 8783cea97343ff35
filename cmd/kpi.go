package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/truckhub/app"
)

var kpiRunID string

var kpiCmd = &cobra.Command{
	Use:   "kpi",
	Short: "Compute flexibility KPIs from stored unit results",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) (any, error) {
			reps, err := svc.KPI(ctx, kpiRunID)
			if err != nil {
				return nil, err
			}
			out := make(map[string]map[string]float64, len(reps))
			for _, r := range reps {
				out[r.Scenario] = app.Indicators(r)
			}
			return out, nil
		})
	},
}

func init() {
	kpiCmd.Flags().StringVar(&kpiRunID, "run", "", "run id to evaluate when the store holds several")
	rootCmd.AddCommand(kpiCmd)
}
