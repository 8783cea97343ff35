package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/truckhub/app"
	"github.com/kilianp07/truckhub/config"
	"github.com/kilianp07/truckhub/infra/logger"
	"github.com/kilianp07/truckhub/pkg/export"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "truckhub",
	Short:         "Truck charging hub sizing and dispatch",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Size, dispatch and evaluate every configured scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) (any, error) {
			return svc.Run(ctx)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.AddCommand(runCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// withService loads the configuration, sets up logging and runs fn with a
// service bound to SIGINT/SIGTERM. The result is printed as JSON.
func withService(cmd *cobra.Command, fn func(context.Context, *app.Service) (any, error)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	closeLog, err := logger.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	out, err := fn(ctx, svc)
	if cerr := svc.Close(); cerr != nil {
		logger.New("main").Errorf("service close: %v", cerr)
	}
	if err != nil {
		return err
	}
	return export.WriteJSON(cmd.OutOrStdout(), out)
}
