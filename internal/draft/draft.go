// Package draft implements a seeded "pick one of N" card draft with tiered
// cards, pity accumulation for cards that keep missing the offer, and rerolls.
package draft

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/avila-gabriel/game-balance/internal/mechanics"
	"github.com/avila-gabriel/game-balance/pkg/utils"
)

var (
	ErrNoCards       = errors.New("draft has no cards")
	ErrNoOffer       = errors.New("no offer has been rolled")
	ErrNoRerolls     = errors.New("no rerolls left")
	ErrNotOffered    = errors.New("card is not in the current offer")
	ErrDuplicateCard = errors.New("duplicate card name")
)

// Tier ranks cards; higher tiers are shown first when tiers are prioritized.
type Tier int

const (
	Common Tier = iota
	Uncommon
	Rare
	Epic
)

var tierNames = []string{"common", "uncommon", "rare", "epic"}

func (t Tier) String() string {
	if t < Common || t > Epic {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// ParseTier parses a tier name, case-insensitively.
func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if strings.EqualFold(s, name) {
			return Tier(i), nil
		}
	}
	return Common, fmt.Errorf("unknown tier %q", s)
}

// Pity raises a card's offer chance toward Cap by a fraction K of the gap
// every time the card is left out of an offer.
type Pity struct {
	Cap float64
	K   float64
}

// Card is a draftable option producing an effect of type E when picked.
type Card[E any] struct {
	Name  string
	Tier  Tier
	BaseP float64
	Pity  *Pity
	Make  func() E
}

type Config struct {
	OptionsPerRoll  int
	RerollsPerDraft int
	PrioritizeTier  bool
}

func DefaultConfig() Config {
	return Config{
		OptionsPerRoll:  3,
		RerollsPerDraft: 1,
		PrioritizeTier:  true,
	}
}

// State is one player's draft. It owns its random source and is not safe for
// concurrent use.
type State[E any] struct {
	cards   []Card[E]
	cfg     Config
	rng     *utils.RandSource
	pity    map[string]float64
	rerolls int
	offer   []int
}

// NewState validates the card pool and seeds a new draft.
func NewState[E any](cards []Card[E], cfg Config, seed int64) (*State[E], error) {
	if len(cards) == 0 {
		return nil, ErrNoCards
	}
	if cfg.OptionsPerRoll < 1 {
		return nil, fmt.Errorf("options per roll must be at least 1, got %d", cfg.OptionsPerRoll)
	}
	if cfg.RerollsPerDraft < 0 {
		return nil, fmt.Errorf("rerolls per draft cannot be negative, got %d", cfg.RerollsPerDraft)
	}

	seen := make(map[string]bool, len(cards))
	for _, c := range cards {
		if c.Name == "" {
			return nil, errors.New("card name is required")
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCard, c.Name)
		}
		seen[c.Name] = true
		if c.BaseP < 0 || c.BaseP > 1 {
			return nil, fmt.Errorf("card %s: base probability %g outside [0, 1]", c.Name, c.BaseP)
		}
		if c.Make == nil {
			return nil, fmt.Errorf("card %s has no effect", c.Name)
		}
	}

	return &State[E]{
		cards: append([]Card[E](nil), cards...),
		cfg:   cfg,
		rng:   utils.NewRandSource(seed),
		pity:  make(map[string]float64, len(cards)),
	}, nil
}

// Offer starts a new draft round, restoring the reroll allowance.
func (s *State[E]) Offer() []Card[E] {
	s.rerolls = s.cfg.RerollsPerDraft
	return s.roll()
}

// Reroll replaces the current offer, consuming one reroll.
func (s *State[E]) Reroll() ([]Card[E], error) {
	if s.offer == nil {
		return nil, ErrNoOffer
	}
	if s.rerolls <= 0 {
		return nil, ErrNoRerolls
	}
	s.rerolls--
	return s.roll(), nil
}

// Pick takes a card from the current offer, resets its pity and returns its effect.
func (s *State[E]) Pick(name string) (E, error) {
	var zero E
	if s.offer == nil {
		return zero, ErrNoOffer
	}
	for _, i := range s.offer {
		c := s.cards[i]
		if c.Name != name {
			continue
		}
		s.pity[c.Name] = 0
		s.offer = nil
		return c.Make(), nil
	}
	return zero, fmt.Errorf("%w: %s", ErrNotOffered, name)
}

// Current returns the offer awaiting a pick, if any.
func (s *State[E]) Current() []Card[E] {
	return s.cardsAt(s.offer)
}

func (s *State[E]) RerollsLeft() int {
	return s.rerolls
}

// PityOf returns the accumulated pity bonus of a card.
func (s *State[E]) PityOf(name string) float64 {
	return s.pity[name]
}

func (s *State[E]) roll() []Card[E] {
	var pool []int
	for i, c := range s.cards {
		if mechanics.Bernoulli(s.rng, c.BaseP+s.pity[c.Name]) {
			pool = append(pool, i)
		}
	}
	if len(pool) == 0 {
		pool = []int{s.fallback()}
	}

	if s.cfg.PrioritizeTier {
		keys := make(map[int]float64, len(pool))
		for _, i := range pool {
			keys[i] = mechanics.Gaussian(s.rng)
		}
		sort.SliceStable(pool, func(a, b int) bool {
			ta, tb := s.cards[pool[a]].Tier, s.cards[pool[b]].Tier
			if ta != tb {
				return ta > tb
			}
			return keys[pool[a]] < keys[pool[b]]
		})
	} else {
		s.rng.Shuffle(len(pool), func(a, b int) {
			pool[a], pool[b] = pool[b], pool[a]
		})
	}

	if len(pool) > s.cfg.OptionsPerRoll {
		pool = pool[:s.cfg.OptionsPerRoll]
	}
	s.offer = pool
	s.updatePity(pool)
	return s.cardsAt(pool)
}

// fallback is the first Common card, or the first card when none is Common.
func (s *State[E]) fallback() int {
	for i, c := range s.cards {
		if c.Tier == Common {
			return i
		}
	}
	return 0
}

func (s *State[E]) updatePity(shown []int) {
	inOffer := make(map[int]bool, len(shown))
	for _, i := range shown {
		inOffer[i] = true
	}
	for i, c := range s.cards {
		if c.Pity == nil {
			continue
		}
		if inOffer[i] {
			s.pity[c.Name] = 0
			continue
		}
		s.pity[c.Name] = mechanics.Approach(s.pity[c.Name], c.Pity.Cap, c.Pity.K, 0, c.Pity.Cap)
	}
}

func (s *State[E]) cardsAt(idx []int) []Card[E] {
	if idx == nil {
		return nil
	}
	out := make([]Card[E], len(idx))
	for n, i := range idx {
		out[n] = s.cards[i]
	}
	return out
}
