package battle

import (
	"sync"

	"github.com/oprtools/armytracker/internal/model"
)

// Context holds the current battle and campaign state
type Context struct {
	mu       sync.RWMutex
	Battle   *model.Battle
	Campaign *model.Campaign
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		Battle:   &model.Battle{BattleName: "No battle loaded"},
		Campaign: &model.Campaign{Name: "No campaign loaded"},
	}
}

// GetBattle returns the current battle
func (bc *Context) GetBattle() *model.Battle {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.Battle
}

// GetCampaign returns the current campaign
func (bc *Context) GetCampaign() *model.Campaign {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.Campaign
}

// SetBattle sets the current battle and campaign
func (bc *Context) SetBattle(battle *model.Battle, campaign *model.Campaign) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.Battle = battle
	bc.Campaign = campaign
}

// Round returns the current round number.
func (bc *Context) Round() uint {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.Battle.Round
}

// SetRound advances the battle to the given round.
func (bc *Context) SetRound(round uint) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.Battle.Round = round
}
