package parser

import (
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/oprtools/armytracker/internal/rules"
)

// WoundCommand holds a parsed wound or heal before target selection.
// The tracker layer resolves the target model via the roster cache and
// the wound allocation rules.
type WoundCommand struct {
	Round       uint
	SelectionID string
	Damage      int // negative for healing
	Source      string
}

// TokenCommand holds a parsed spell token gain or spend before the
// tracker layer applies the token cap against cached unit state.
type TokenCommand struct {
	Round       uint
	SelectionID string
	Delta       int // positive gain, negative spend
	Spell       string
}

// MoveCommand holds a parsed movement declaration. The tracker layer
// computes the allowed distance from the unit's special rules.
type MoveCommand struct {
	Round       uint
	SelectionID string
	Action      rules.ActionType
	From        geom.Point
	To          geom.Point
}

// ObjectiveSeizeCommand holds a parsed objective control change. The
// tracker layer resolves the objective name to an ID via the cache.
type ObjectiveSeizeCommand struct {
	Round    uint
	Name     string
	SeizedBy string
}

// JoinHeroCommand holds a parsed hero attachment. An empty
// HeroSelectionID detaches the currently joined hero.
type JoinHeroCommand struct {
	SelectionID     string
	HeroSelectionID string
}
