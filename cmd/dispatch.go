package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/truckhub/app"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Dispatch every scenario on the station counts of data.stations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) (any, error) {
			return svc.Dispatch(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(dispatchCmd)
}
