// Package fragments indexes every fragment definition found in a source tree
// so that document resolution can look spreads up by name.
package fragments

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jensneuse/abstractlogger"
)

// Definition is one named fragment. Body holds the full raw definition text
// ("fragment X on T { ... }") as it appeared in the declaring file.
type Definition struct {
	Name          string `json:"name"`
	TypeCondition string `json:"typeCondition"`
	Body          string `json:"body"`
	File          string `json:"file"`
}

// ConflictPolicy decides what happens when two files define the same
// fragment name.
type ConflictPolicy int

const (
	// FirstWins keeps the first loaded definition. Load order is the stable
	// file walk order, so the outcome is reproducible, but it remains a
	// documented source of ambiguity when names genuinely collide.
	FirstWins ConflictPolicy = iota
	LastWins
	ErrorOnConflict
)

var ErrDuplicateFragment = errors.New("duplicate fragment definition")

// Store holds fragment definitions for one extraction run. It must be fully
// populated before resolution starts and is read-only afterwards; it is not
// safe for concurrent writes.
type Store struct {
	policy      ConflictPolicy
	log         abstractlogger.Logger
	definitions map[string]Definition
}

func NewStore(policy ConflictPolicy, logger abstractlogger.Logger) *Store {
	if logger == nil {
		logger = abstractlogger.NoopLogger
	}
	return &Store{
		policy:      policy,
		log:         logger,
		definitions: map[string]Definition{},
	}
}

func (s *Store) Add(def Definition) error {
	existing, exists := s.definitions[def.Name]
	if !exists {
		s.definitions[def.Name] = def
		return nil
	}
	switch s.policy {
	case FirstWins:
		s.log.Debug("fragments: keeping first definition",
			abstractlogger.String("fragment", def.Name),
			abstractlogger.String("kept", existing.File),
			abstractlogger.String("ignored", def.File),
		)
	case LastWins:
		s.definitions[def.Name] = def
	case ErrorOnConflict:
		return fmt.Errorf("%w: %s defined in %s and %s", ErrDuplicateFragment, def.Name, existing.File, def.File)
	}
	return nil
}

func (s *Store) Get(name string) (Definition, bool) {
	def, ok := s.definitions[name]
	return def, ok
}

// Names returns all known fragment names, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.definitions))
	for name := range s.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) Len() int {
	return len(s.definitions)
}
