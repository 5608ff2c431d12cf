package cache

import (
	"sync"

	"github.com/oprtools/armytracker/internal/model"
)

// RosterCache holds the live state of every unit in the current battle.
// Units are stored as pointers because wound and token bookkeeping
// mutates them between commands; all access goes through the cache
// mutex. Latency in these calls is critical to quickly process
// incoming data.
type RosterCache struct {
	m     sync.Mutex
	Units map[string]*model.Unit
}

func NewRosterCache() *RosterCache {
	return &RosterCache{
		m:     sync.Mutex{},
		Units: make(map[string]*model.Unit),
	}
}

func (c *RosterCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.Units = make(map[string]*model.Unit)
}

func (c *RosterCache) Lock() {
	c.m.Lock()
}

func (c *RosterCache) Unlock() {
	c.m.Unlock()
}

func (c *RosterCache) GetUnit(selectionID string) (*model.Unit, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	if u, ok := c.Units[selectionID]; ok {
		return u, true
	}
	return nil, false
}

func (c *RosterCache) AddUnit(u *model.Unit) {
	c.m.Lock()
	defer c.m.Unlock()
	c.Units[u.SelectionID] = u
}

// JoinedHero resolves the hero currently attached to the unit. Returns
// nil when no hero is joined or the referenced unit is unknown.
func (c *RosterCache) JoinedHero(u *model.Unit) *model.Unit {
	if u == nil || !u.JoinedHeroSelectionID.Valid {
		return nil
	}
	c.m.Lock()
	defer c.m.Unlock()
	return c.Units[u.JoinedHeroSelectionID.String]
}

// Snapshot returns the cached units in no particular order.
func (c *RosterCache) Snapshot() []*model.Unit {
	c.m.Lock()
	defer c.m.Unlock()
	units := make([]*model.Unit, 0, len(c.Units))
	for _, u := range c.Units {
		units = append(units, u)
	}
	return units
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
