package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/avila-gabriel/game-balance/internal/genre"
	"github.com/avila-gabriel/game-balance/internal/registry"
	"github.com/avila-gabriel/game-balance/internal/report"
	"github.com/avila-gabriel/game-balance/internal/scenario"
	"github.com/avila-gabriel/game-balance/pkg/config"
	"github.com/avila-gabriel/game-balance/pkg/logger"
	"github.com/spf13/cobra"
)

var errNotConverged = errors.New("pipeline did not converge")

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Balance a YAML scenario and print the report",
		Long: `Balance a YAML scenario and print the report.

Examples:
  balance run -f scenarios/idle.yaml
  balance run -f scenarios/economy.yaml --format csv
  balance run -f scenarios/idle.yaml --seed 42 --strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			formatName, _ := cmd.Flags().GetString("format")
			strict, _ := cmd.Flags().GetBool("strict")

			format, err := report.ParseFormat(formatName)
			if err != nil {
				return err
			}
			s, err := config.LoadScenario(path)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				s.Seed, _ = cmd.Flags().GetInt64("seed")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, plan, runErr := scenario.Run(ctx, s, registry.Default(), logger.Default)
			if res == nil {
				return runErr
			}
			if err := printResult(cmd.OutOrStdout(), format, res, plan.Picks); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if strict && !res.Converged() {
				return errNotConverged
			}
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "Scenario YAML file")
	cmd.Flags().String("format", "text", "Report format: text, csv, or json")
	cmd.Flags().Int64("seed", 0, "Override the scenario seed")
	cmd.Flags().Bool("strict", false, "Exit non-zero unless every stage converged")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// printResult writes the report, preceded by the drafted cards in text mode.
func printResult(w io.Writer, format report.Format, res *genre.Result, picks []string) error {
	if format == report.FormatText && len(picks) > 0 {
		fmt.Fprintf(w, "drafted: %s\n\n", strings.Join(picks, ", "))
	}
	return report.WriteResult(w, format, res)
}
