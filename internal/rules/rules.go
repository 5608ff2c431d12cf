// Package rules implements the One Page Rules tabletop mechanics the
// tracker enforces: wound allocation order, movement allowances and
// unit strength thresholds. All functions are pure and never mutate
// their arguments.
package rules

import (
	"github.com/oprtools/armytracker/internal/model"
)

// ActionType is a movement action declared for a unit activation.
type ActionType string

const (
	ActionHold    ActionType = "hold"
	ActionAdvance ActionType = "advance"
	ActionRush    ActionType = "rush"
	ActionCharge  ActionType = "charge"
)

// Special rule tags that affect movement.
const (
	RuleFast = "Fast"
	RuleSlow = "Slow"
)

// ParseAction maps a client action string to an ActionType. Unknown
// strings report ok=false.
func ParseAction(s string) (ActionType, bool) {
	switch ActionType(s) {
	case ActionHold, ActionAdvance, ActionRush, ActionCharge:
		return ActionType(s), true
	}
	return "", false
}

// SelectWoundTarget returns the model that must take the next wound,
// following the mandatory allocation order:
//
//  1. rank-and-file models (neither Tough nor a hero), in roster order,
//     base unit before a joined hero's retinue
//  2. Tough non-hero models, lowest remaining wounds first
//  3. hero models, lowest remaining wounds first
//
// joinedHero may be nil when no hero is attached. Returns nil when no
// model in the pool has wounds remaining.
func SelectWoundTarget(baseUnit *model.Unit, joinedHero *model.Unit) *model.UnitModel {
	if baseUnit == nil {
		return nil
	}

	pool := make([]*model.UnitModel, 0, len(baseUnit.Models))
	for i := range baseUnit.Models {
		pool = append(pool, &baseUnit.Models[i])
	}
	if joinedHero != nil {
		for i := range joinedHero.Models {
			pool = append(pool, &joinedHero.Models[i])
		}
	}

	// Tier 1: first active rank-and-file model in roster order.
	for _, m := range pool {
		if m.CurrentHP > 0 && !m.IsTough && !m.IsHero {
			return m
		}
	}

	// Tier 2: active Tough non-hero with the fewest wounds left. Ties
	// keep the earliest model in roster order.
	var target *model.UnitModel
	for _, m := range pool {
		if m.CurrentHP > 0 && m.IsTough && !m.IsHero {
			if target == nil || m.CurrentHP < target.CurrentHP {
				target = m
			}
		}
	}
	if target != nil {
		return target
	}

	// Tier 3: active hero with the fewest wounds left.
	for _, m := range pool {
		if m.CurrentHP > 0 && m.IsHero {
			if target == nil || m.CurrentHP < target.CurrentHP {
				target = m
			}
		}
	}
	return target
}

// CalculateMovement returns the distance in inches the unit may move
// for the declared action. Hold is always zero regardless of special
// rules. Fast and Slow adjust the base allowance; a unit carrying both
// moves as Fast. Distances are not clamped to the table.
func CalculateMovement(unit *model.Unit, action ActionType) int {
	if unit == nil {
		return 0
	}
	if action == ActionHold {
		return 0
	}

	distance := 0
	switch action {
	case ActionAdvance:
		distance = 6
		if unit.HasRule(RuleFast) {
			distance += 2
		} else if unit.HasRule(RuleSlow) {
			distance -= 2
		}
	case ActionRush, ActionCharge:
		distance = 12
		if unit.HasRule(RuleFast) {
			distance += 4
		} else if unit.HasRule(RuleSlow) {
			distance -= 4
		}
	}
	return distance
}

// IsAtHalfStrength reports whether the unit has lost half or more of
// its starting models. Counts whole models only, so a multi-wound
// model that has taken wounds but still stands is at full strength for
// this check. Returns false for a nil unit.
func IsAtHalfStrength(unit *model.Unit) bool {
	if unit == nil {
		return false
	}
	return unit.ActiveModels()*2 <= unit.StartingSize
}
