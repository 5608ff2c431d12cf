package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oprtools/armytracker/internal/model"
)

func unitWithModels(models ...model.UnitModel) *model.Unit {
	return &model.Unit{
		SelectionID:  "u1",
		StartingSize: len(models),
		Models:       models,
	}
}

func TestSelectWoundTarget_NilUnit(t *testing.T) {
	assert.Nil(t, SelectWoundTarget(nil, nil))
}

func TestSelectWoundTarget_AllModelsDown(t *testing.T) {
	u := unitWithModels(
		model.UnitModel{ModelID: "m1", CurrentHP: 0},
		model.UnitModel{ModelID: "m2", CurrentHP: 0, IsTough: true},
		model.UnitModel{ModelID: "m3", CurrentHP: 0, IsHero: true},
	)
	assert.Nil(t, SelectWoundTarget(u, nil))
}

func TestSelectWoundTarget_RankAndFileFirst(t *testing.T) {
	u := unitWithModels(
		model.UnitModel{ModelID: "hero", CurrentHP: 3, IsHero: true},
		model.UnitModel{ModelID: "tough", CurrentHP: 1, IsTough: true},
		model.UnitModel{ModelID: "grunt", CurrentHP: 1},
	)

	target := SelectWoundTarget(u, nil)
	require.NotNil(t, target)
	assert.Equal(t, "grunt", target.ModelID)
	assert.False(t, target.IsTough)
	assert.False(t, target.IsHero)
}

func TestSelectWoundTarget_RankAndFileRosterOrder(t *testing.T) {
	u := unitWithModels(
		model.UnitModel{ModelID: "m1", CurrentHP: 1},
		model.UnitModel{ModelID: "m2", CurrentHP: 1},
	)

	target := SelectWoundTarget(u, nil)
	require.NotNil(t, target)
	assert.Equal(t, "m1", target.ModelID)
}

func TestSelectWoundTarget_BaseUnitBeforeJoinedHero(t *testing.T) {
	base := unitWithModels(
		model.UnitModel{ModelID: "base-grunt", CurrentHP: 1},
	)
	hero := unitWithModels(
		model.UnitModel{ModelID: "hero-grunt", CurrentHP: 1},
	)

	target := SelectWoundTarget(base, hero)
	require.NotNil(t, target)
	assert.Equal(t, "base-grunt", target.ModelID)
}

func TestSelectWoundTarget_FallsThroughToJoinedHero(t *testing.T) {
	base := unitWithModels(
		model.UnitModel{ModelID: "base-grunt", CurrentHP: 0},
	)
	hero := unitWithModels(
		model.UnitModel{ModelID: "hero", CurrentHP: 2, IsHero: true},
	)

	target := SelectWoundTarget(base, hero)
	require.NotNil(t, target)
	assert.Equal(t, "hero", target.ModelID)
}

func TestSelectWoundTarget_ToughTakesLowestWounds(t *testing.T) {
	u := unitWithModels(
		model.UnitModel{ModelID: "t1", CurrentHP: 3, IsTough: true},
		model.UnitModel{ModelID: "t2", CurrentHP: 1, IsTough: true},
		model.UnitModel{ModelID: "t3", CurrentHP: 2, IsTough: true},
	)

	target := SelectWoundTarget(u, nil)
	require.NotNil(t, target)
	assert.Equal(t, "t2", target.ModelID)
}

func TestSelectWoundTarget_ToughTieKeepsRosterOrder(t *testing.T) {
	u := unitWithModels(
		model.UnitModel{ModelID: "t1", CurrentHP: 2, IsTough: true},
		model.UnitModel{ModelID: "t2", CurrentHP: 2, IsTough: true},
	)

	target := SelectWoundTarget(u, nil)
	require.NotNil(t, target)
	assert.Equal(t, "t1", target.ModelID)
}

func TestSelectWoundTarget_HeroesLast(t *testing.T) {
	u := unitWithModels(
		model.UnitModel{ModelID: "h1", CurrentHP: 4, IsHero: true},
		model.UnitModel{ModelID: "h2", CurrentHP: 2, IsHero: true},
	)

	target := SelectWoundTarget(u, nil)
	require.NotNil(t, target)
	assert.Equal(t, "h2", target.ModelID)
}

func TestSelectWoundTarget_SkipsDownedModels(t *testing.T) {
	u := unitWithModels(
		model.UnitModel{ModelID: "m1", CurrentHP: 0},
		model.UnitModel{ModelID: "m2", CurrentHP: 1},
	)

	target := SelectWoundTarget(u, nil)
	require.NotNil(t, target)
	assert.Equal(t, "m2", target.ModelID)
}

func TestSelectWoundTarget_WoundedPlainBeforeFreshTough(t *testing.T) {
	u := unitWithModels(
		model.UnitModel{ModelID: "grunt", CurrentHP: 1},
		model.UnitModel{ModelID: "tough", CurrentHP: 3, IsTough: true, MaxHP: 3},
	)

	target := SelectWoundTarget(u, nil)
	require.NotNil(t, target)
	assert.Equal(t, "grunt", target.ModelID)
}

func TestSelectWoundTarget_Idempotent(t *testing.T) {
	u := unitWithModels(
		model.UnitModel{ModelID: "m1", CurrentHP: 1},
		model.UnitModel{ModelID: "t1", CurrentHP: 2, IsTough: true},
	)

	first := SelectWoundTarget(u, nil)
	second := SelectWoundTarget(u, nil)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Same(t, first, second)

	// Selection never mutates the unit.
	assert.Equal(t, 1, u.Models[0].CurrentHP)
	assert.Equal(t, 2, u.Models[1].CurrentHP)
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		input    string
		expected ActionType
		ok       bool
	}{
		{"hold", ActionHold, true},
		{"advance", ActionAdvance, true},
		{"rush", ActionRush, true},
		{"charge", ActionCharge, true},
		{"sprint", "", false},
		{"", "", false},
		{"Advance", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			action, ok := ParseAction(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, action)
		})
	}
}

func TestCalculateMovement(t *testing.T) {
	plain := &model.Unit{SelectionID: "u1"}
	fast := &model.Unit{SelectionID: "u2", RuleTags: []string{RuleFast}}
	slow := &model.Unit{SelectionID: "u3", RuleTags: []string{RuleSlow}}
	both := &model.Unit{SelectionID: "u4", RuleTags: []string{RuleSlow, RuleFast}}

	tests := []struct {
		name     string
		unit     *model.Unit
		action   ActionType
		expected int
	}{
		{"nil unit", nil, ActionAdvance, 0},
		{"hold", plain, ActionHold, 0},
		{"hold ignores fast", fast, ActionHold, 0},
		{"hold ignores slow", slow, ActionHold, 0},
		{"advance", plain, ActionAdvance, 6},
		{"rush", plain, ActionRush, 12},
		{"charge", plain, ActionCharge, 12},
		{"fast advance", fast, ActionAdvance, 8},
		{"fast rush", fast, ActionRush, 16},
		{"fast charge", fast, ActionCharge, 16},
		{"slow advance", slow, ActionAdvance, 4},
		{"slow rush", slow, ActionRush, 8},
		{"slow charge", slow, ActionCharge, 8},
		{"fast beats slow on advance", both, ActionAdvance, 8},
		{"fast beats slow on charge", both, ActionCharge, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CalculateMovement(tt.unit, tt.action))
		})
	}
}

func TestIsAtHalfStrength(t *testing.T) {
	tenStrong := func(active int) *model.Unit {
		u := &model.Unit{SelectionID: "u1", StartingSize: 10}
		for i := 0; i < 10; i++ {
			hp := 0
			if i < active {
				hp = 1
			}
			u.Models = append(u.Models, model.UnitModel{CurrentHP: hp})
		}
		return u
	}

	assert.False(t, IsAtHalfStrength(nil))
	assert.False(t, IsAtHalfStrength(tenStrong(10)))
	assert.False(t, IsAtHalfStrength(tenStrong(6)))
	assert.True(t, IsAtHalfStrength(tenStrong(5)))
	assert.True(t, IsAtHalfStrength(tenStrong(1)))
	assert.True(t, IsAtHalfStrength(tenStrong(0)))
}

func TestIsAtHalfStrength_CountsModelsNotWounds(t *testing.T) {
	// A wounded multi-wound model still stands, so a two-model unit
	// with one badly hurt model is above half strength.
	u := &model.Unit{
		SelectionID:  "u1",
		StartingSize: 2,
		Models: []model.UnitModel{
			{ModelID: "t1", CurrentHP: 1, MaxHP: 3, IsTough: true},
			{ModelID: "t2", CurrentHP: 3, MaxHP: 3, IsTough: true},
		},
	}
	assert.False(t, IsAtHalfStrength(u))
}

func TestWoundAllocationSequence(t *testing.T) {
	// One plain model and one Tough(3) model: the plain model takes the
	// first wound, then the Tough model soaks the rest.
	u := unitWithModels(
		model.UnitModel{ModelID: "grunt", CurrentHP: 1, MaxHP: 1},
		model.UnitModel{ModelID: "tough", CurrentHP: 3, MaxHP: 3, IsTough: true},
	)

	var sequence []string
	for {
		target := SelectWoundTarget(u, nil)
		if target == nil {
			break
		}
		sequence = append(sequence, target.ModelID)
		target.CurrentHP--
	}

	assert.Equal(t, []string{"grunt", "tough", "tough", "tough"}, sequence)
	assert.Nil(t, SelectWoundTarget(u, nil))
}
