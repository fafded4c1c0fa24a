package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/avila-gabriel/game-balance/internal/draft"
	"github.com/avila-gabriel/game-balance/internal/genre"
	"github.com/avila-gabriel/game-balance/internal/genre/idle"
	"github.com/avila-gabriel/game-balance/internal/report"
	"github.com/avila-gabriel/game-balance/pkg/logger"
	"github.com/spf13/cobra"
)

func newIdleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idle",
		Short: "Balance the idle-game pipeline with default targets",
		Long: `Balance the idle-game pipeline (core, curve, prestige, offline) with
the default designer targets.

Examples:
  balance idle
  balance idle --afk-minutes 480 --passes 3
  balance idle --draft-rounds 2 --draft-seed 9 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatName, _ := cmd.Flags().GetString("format")
			seed, _ := cmd.Flags().GetInt64("seed")
			passes, _ := cmd.Flags().GetInt("passes")
			afk, _ := cmd.Flags().GetFloat64("afk-minutes")
			rounds, _ := cmd.Flags().GetInt("draft-rounds")
			draftSeed, _ := cmd.Flags().GetInt64("draft-seed")
			strict, _ := cmd.Flags().GetBool("strict")

			format, err := report.ParseFormat(formatName)
			if err != nil {
				return err
			}

			opts := idle.DefaultOptions()
			if cmd.Flags().Changed("afk-minutes") {
				opts.Targets.AFKMinutes = afk
			}
			var picks []string
			if rounds > 0 {
				mods, names, err := idle.DraftModifiers(rounds, draft.DefaultConfig(), draftSeed)
				if err != nil {
					return err
				}
				opts.Modifiers = mods
				picks = names
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, runErr := idle.Run(ctx, opts, genre.Config{
				Passes: passes,
				Seed:   seed,
				Logger: logger.Default,
			})
			if res == nil {
				return runErr
			}
			if err := printResult(cmd.OutOrStdout(), format, res, picks); err != nil {
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

	cmd.Flags().String("format", "text", "Report format: text, csv, or json")
	cmd.Flags().Int64("seed", 0, "Base seed of the pipeline")
	cmd.Flags().Int("passes", 1, "Maximum pipeline passes")
	cmd.Flags().Float64("afk-minutes", idle.DefaultTargets().AFKMinutes, "Designer estimate of time spent away, in minutes")
	cmd.Flags().Int("draft-rounds", 0, "Draft this many core income modifiers first")
	cmd.Flags().Int64("draft-seed", 1, "Seed of the modifier draft")
	cmd.Flags().Bool("strict", false, "Exit non-zero unless every stage converged")

	return cmd
}
