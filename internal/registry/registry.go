// Package registry maps names to system and genre constructors so that the
// balance core, the CLI and the daemon never hard-code which systems exist.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/avila-gabriel/game-balance/internal/balance"
	"github.com/avila-gabriel/game-balance/internal/genre"
	"github.com/avila-gabriel/game-balance/internal/systems"
)

var (
	ErrDuplicate = errors.New("already registered")
	ErrNotFound  = errors.New("not registered")
)

// SystemFactory builds a fresh system instance.
type SystemFactory func() balance.System

// GenreOptions customise a preset genre. Maps are keyed by stage name.
type GenreOptions struct {
	Params    map[string]balance.Params
	Targets   map[string]balance.Targets
	Env       map[string]balance.Env
	Signals   genre.Signals
	Modifiers []systems.IncomeModifier
}

// GenreFactory builds the stages of a genre and the default signals they start from.
type GenreFactory func(GenreOptions) ([]genre.Stage, genre.Signals, error)

type Registry struct {
	mu      sync.RWMutex
	systems map[string]SystemFactory
	genres  map[string]GenreFactory
}

func New() *Registry {
	return &Registry{
		systems: make(map[string]SystemFactory),
		genres:  make(map[string]GenreFactory),
	}
}

func (r *Registry) RegisterSystem(name string, f SystemFactory) error {
	if name == "" || f == nil {
		return errors.New("system name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.systems[name]; ok {
		return fmt.Errorf("system %s: %w", name, ErrDuplicate)
	}
	r.systems[name] = f
	return nil
}

func (r *Registry) RegisterGenre(name string, f GenreFactory) error {
	if name == "" || f == nil {
		return errors.New("genre name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.genres[name]; ok {
		return fmt.Errorf("genre %s: %w", name, ErrDuplicate)
	}
	r.genres[name] = f
	return nil
}

// System builds the named system.
func (r *Registry) System(name string) (balance.System, error) {
	r.mu.RLock()
	f, ok := r.systems[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("system %s: %w", name, ErrNotFound)
	}
	return f(), nil
}

func (r *Registry) Genre(name string) (GenreFactory, error) {
	r.mu.RLock()
	f, ok := r.genres[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("genre %s: %w", name, ErrNotFound)
	}
	return f, nil
}

// Systems returns the registered system names in sorted order.
func (r *Registry) Systems() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.systems)
}

// Genres returns the registered genre names in sorted order.
func (r *Registry) Genres() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.genres)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
