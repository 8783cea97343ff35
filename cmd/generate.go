package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/truckhub/app"
	"github.com/kilianp07/truckhub/core/synth"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a synthetic truck population into data.sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) (any, error) {
			sessions, err := svc.Generate(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"sessions": len(sessions),
				"shares":   synth.ClassShares(sessions),
			}, nil
		})
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}
