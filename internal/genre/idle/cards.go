package idle

import (
	"github.com/avila-gabriel/game-balance/internal/draft"
	"github.com/avila-gabriel/game-balance/internal/mechanics"
	"github.com/avila-gabriel/game-balance/internal/systems"
)

// DefaultCards is the draft pool of core income modifiers.
func DefaultCards() []draft.Card[systems.IncomeModifier] {
	boost := func(f float64) func() systems.IncomeModifier {
		return func() systems.IncomeModifier { return systems.IncomeBoost{Factor: f} }
	}
	return []draft.Card[systems.IncomeModifier]{
		{Name: "spark", Tier: draft.Common, BaseP: 0.7, Make: boost(1.05)},
		{Name: "bellows", Tier: draft.Common, BaseP: 0.6, Make: boost(1.1)},
		{Name: "treasury", Tier: draft.Uncommon, BaseP: 0.4, Pity: &draft.Pity{Cap: 0.3, K: 0.4},
			Make: func() systems.IncomeModifier {
				return systems.ProgressiveIncomeTax{Brackets: []mechanics.TaxBracket{
					{Threshold: 0, Rate: 0},
					{Threshold: 10, Rate: 0.2},
				}}
			}},
		{Name: "dynamo", Tier: draft.Rare, BaseP: 0.2, Pity: &draft.Pity{Cap: 0.4, K: 0.25}, Make: boost(1.25)},
		{Name: "hoarder", Tier: draft.Epic, BaseP: 0.08, Pity: &draft.Pity{Cap: 0.5, K: 0.15},
			Make: func() systems.IncomeModifier {
				return systems.HoardingFee{Slope: 0.05, MaxMult: 2}
			}},
	}
}

// DraftModifiers runs rounds draft rounds, always picking the first offered
// card, and returns the picked modifiers with their card names.
func DraftModifiers(rounds int, cfg draft.Config, seed int64) ([]systems.IncomeModifier, []string, error) {
	st, err := draft.NewState(DefaultCards(), cfg, seed)
	if err != nil {
		return nil, nil, err
	}
	var mods []systems.IncomeModifier
	var picked []string
	for i := 0; i < rounds; i++ {
		offer := st.Offer()
		mod, err := st.Pick(offer[0].Name)
		if err != nil {
			return nil, nil, err
		}
		mods = append(mods, mod)
		picked = append(picked, offer[0].Name)
	}
	return mods, picked, nil
}
