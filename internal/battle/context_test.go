package battle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oprtools/armytracker/internal/model"
)

func TestContext_Defaults(t *testing.T) {
	ctx := NewContext()

	b := ctx.GetBattle()
	assert.Equal(t, "No battle loaded", b.BattleName)

	c := ctx.GetCampaign()
	assert.Equal(t, "No campaign loaded", c.Name)
}

func TestContext_SetBattle(t *testing.T) {
	ctx := NewContext()

	ctx.SetBattle(
		&model.Battle{BattleName: "Siege of Vossheim"},
		&model.Campaign{Name: "Winter Offensive"},
	)

	assert.Equal(t, "Siege of Vossheim", ctx.GetBattle().BattleName)
	assert.Equal(t, "Winter Offensive", ctx.GetCampaign().Name)
}

func TestContext_Rounds(t *testing.T) {
	ctx := NewContext()
	assert.Equal(t, uint(0), ctx.Round())

	ctx.SetRound(3)
	assert.Equal(t, uint(3), ctx.Round())
	assert.Equal(t, uint(3), ctx.GetBattle().Round)
}
