package main

import (
	"fmt"
	"os"

	"github.com/avila-gabriel/game-balance/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "balance",
		Short: "Game economy parameter tuning sandbox",
		Long: `balance tunes game-system parameters until their simulated KPIs land
inside designer target bands.

It runs single systems or whole genre pipelines from YAML scenarios,
simulates card drafts, and can serve runs over HTTP and gRPC.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			format, _ := cmd.Flags().GetString("log-format")
			log, err := logger.NewFormat(format, level, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			logger.SetDefault(log)
			return nil
		},
	}

	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format (text, json, console)")

	rootCmd.AddCommand(
		newRunCmd(),
		newIdleCmd(),
		newDraftCmd(),
		newSystemsCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return rootCmd
}
