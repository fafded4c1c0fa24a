package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/avila-gabriel/game-balance/internal/draft"
	"github.com/avila-gabriel/game-balance/internal/genre/idle"
	"github.com/avila-gabriel/game-balance/internal/systems"
	"github.com/spf13/cobra"
)

func newDraftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Simulate drafting idle income modifiers",
		Long: `Simulate drafting idle income modifiers round by round.

Each round shows the offer with every card's pity bonus. The bot picks the
first offered card, rerolling while the best card is below --reroll-below
and rerolls remain.

Examples:
  balance draft --rounds 5
  balance draft --rounds 10 --seed 3 --reroll-below rare`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rounds, _ := cmd.Flags().GetInt("rounds")
			seed, _ := cmd.Flags().GetInt64("seed")
			options, _ := cmd.Flags().GetInt("options")
			rerolls, _ := cmd.Flags().GetInt("rerolls")
			shuffle, _ := cmd.Flags().GetBool("shuffle")
			belowName, _ := cmd.Flags().GetString("reroll-below")

			below := draft.Common
			if belowName != "" {
				t, err := draft.ParseTier(belowName)
				if err != nil {
					return err
				}
				below = t
			}

			cfg := draft.Config{
				OptionsPerRoll:  options,
				RerollsPerDraft: rerolls,
				PrioritizeTier:  !shuffle,
			}
			return runDraft(cmd.OutOrStdout(), rounds, cfg, seed, below)
		},
	}

	def := draft.DefaultConfig()
	cmd.Flags().Int("rounds", 3, "Number of draft rounds")
	cmd.Flags().Int64("seed", 1, "Draft seed")
	cmd.Flags().Int("options", def.OptionsPerRoll, "Cards offered per roll")
	cmd.Flags().Int("rerolls", def.RerollsPerDraft, "Rerolls allowed per round")
	cmd.Flags().Bool("shuffle", false, "Shuffle offers instead of ordering them by tier")
	cmd.Flags().String("reroll-below", "", "Reroll while the best offered tier is below this one")

	return cmd
}

func runDraft(w io.Writer, rounds int, cfg draft.Config, seed int64, below draft.Tier) error {
	if rounds < 1 {
		return fmt.Errorf("rounds must be at least 1, got %d", rounds)
	}
	st, err := draft.NewState(idle.DefaultCards(), cfg, seed)
	if err != nil {
		return err
	}

	var picked []string
	for round := 1; round <= rounds; round++ {
		offer := st.Offer()
		fmt.Fprintf(w, "round %d: %s\n", round, describeOffer(st, offer))
		for bestTier(offer) < below && st.RerollsLeft() > 0 {
			offer, err = st.Reroll()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  reroll: %s\n", describeOffer(st, offer))
		}
		mod, err := st.Pick(offer[0].Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  picked %s (%s)\n", offer[0].Name, mod.Name())
		picked = append(picked, offer[0].Name)
	}
	fmt.Fprintf(w, "drafted: %s\n", strings.Join(picked, ", "))
	return nil
}

func describeOffer(st *draft.State[systems.IncomeModifier], offer []draft.Card[systems.IncomeModifier]) string {
	parts := make([]string, len(offer))
	for i, c := range offer {
		parts[i] = fmt.Sprintf("%s[%s pity=%.3f]", c.Name, c.Tier, st.PityOf(c.Name))
	}
	return strings.Join(parts, " ")
}

func bestTier(offer []draft.Card[systems.IncomeModifier]) draft.Tier {
	best := draft.Common
	for _, c := range offer {
		if c.Tier > best {
			best = c.Tier
		}
	}
	return best
}
