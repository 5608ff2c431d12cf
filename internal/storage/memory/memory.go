// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sync"

	"github.com/oprtools/armytracker/internal/config"
	"github.com/oprtools/armytracker/internal/model"
)

// UnitRecord groups a unit with all its recorded events
type UnitRecord struct {
	Unit        model.Unit
	WoundEvents []model.WoundEvent
	TokenEvents []model.SpellTokenEvent
	MoveEvents  []model.MoveEvent
}

// ObjectiveRecord groups an objective marker with its control changes
type ObjectiveRecord struct {
	Marker model.ObjectiveMarker
	States []model.ObjectiveState
}

// Backend stores battle data in memory and exports to JSON
type Backend struct {
	cfg      config.MemoryConfig
	battle   *model.Battle
	campaign *model.Campaign

	units      map[string]*UnitRecord      // keyed by SelectionID
	objectives map[string]*ObjectiveRecord // keyed by objective name

	killEvents  []model.KillEvent
	roundEvents []model.RoundEvent

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:        cfg,
		units:      make(map[string]*UnitRecord),
		objectives: make(map[string]*ObjectiveRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartBattle begins recording a new battle
func (b *Backend) StartBattle(battle *model.Battle, campaign *model.Campaign) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.battle = battle
	b.campaign = campaign

	// Reset all collections
	b.units = make(map[string]*UnitRecord)
	b.objectives = make(map[string]*ObjectiveRecord)
	b.killEvents = nil
	b.roundEvents = nil
	b.idCounter = 0

	return nil
}

// ErrNoBattle is returned when an export is requested before any
// battle was started.
var ErrNoBattle = errors.New("no battle in progress")

// EndBattle finalizes and exports the battle data
func (b *Backend) EndBattle() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.battle == nil {
		return ErrNoBattle
	}
	return b.exportJSON()
}

// AddUnit registers a new unit
func (b *Backend) AddUnit(u *model.Unit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.units[u.SelectionID] = &UnitRecord{
		Unit:        *u,
		WoundEvents: make([]model.WoundEvent, 0),
		TokenEvents: make([]model.SpellTokenEvent, 0),
		MoveEvents:  make([]model.MoveEvent, 0),
	}
	return nil
}

// AddObjective registers a new objective marker and assigns it an ID
func (b *Backend) AddObjective(m *model.ObjectiveMarker) (uint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	m.ID = b.idCounter

	b.objectives[m.Name] = &ObjectiveRecord{
		Marker: *m,
		States: make([]model.ObjectiveState, 0),
	}
	return m.ID, nil
}

// GetUnitBySelectionID looks up a unit by its selection ID
func (b *Backend) GetUnitBySelectionID(selectionID string) (*model.Unit, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if record, ok := b.units[selectionID]; ok {
		return &record.Unit, true
	}
	return nil, false
}

// GetObjectiveByName looks up an objective marker by name
func (b *Backend) GetObjectiveByName(name string) (*model.ObjectiveMarker, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if record, ok := b.objectives[name]; ok {
		return &record.Marker, true
	}
	return nil, false
}

// RecordWoundEvent records a wound or heal against its unit
func (b *Backend) RecordWoundEvent(e *model.WoundEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record, ok := b.units[e.UnitSelectionID]; ok {
		record.WoundEvents = append(record.WoundEvents, *e)
	}
	return nil // silently ignore if unit not found
}

// RecordKillEvent records a unit destruction
func (b *Backend) RecordKillEvent(e *model.KillEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.killEvents = append(b.killEvents, *e)
	return nil
}

// RecordSpellTokenEvent records a token gain or spend against its unit
func (b *Backend) RecordSpellTokenEvent(e *model.SpellTokenEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record, ok := b.units[e.UnitSelectionID]; ok {
		record.TokenEvents = append(record.TokenEvents, *e)
	}
	return nil
}

// RecordMoveEvent records a movement against its unit
func (b *Backend) RecordMoveEvent(e *model.MoveEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record, ok := b.units[e.UnitSelectionID]; ok {
		record.MoveEvents = append(record.MoveEvents, *e)
	}
	return nil
}

// RecordRoundEvent records a round boundary
func (b *Backend) RecordRoundEvent(e *model.RoundEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roundEvents = append(b.roundEvents, *e)
	return nil
}

// RecordObjectiveState records an objective control change
func (b *Backend) RecordObjectiveState(s *model.ObjectiveState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, record := range b.objectives {
		if record.Marker.ID == s.ObjectiveID {
			record.States = append(record.States, *s)
			return nil
		}
	}
	return nil
}

// RecordPerformance is a no-op for the memory backend
func (b *Backend) RecordPerformance(p *model.TrackerPerformance) error {
	return nil
}
