package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/truckhub/app"
)

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Size the station pool and label served sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) (any, error) {
			return svc.Size(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(sizeCmd)
}
