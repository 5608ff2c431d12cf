// internal/storage/storage.go
package storage

import "github.com/oprtools/armytracker/internal/model"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Battle management
	StartBattle(battle *model.Battle, campaign *model.Campaign) error
	EndBattle() error

	// Entity registration (assigns ID to the passed pointer)
	AddUnit(u *model.Unit) error
	AddObjective(m *model.ObjectiveMarker) (uint, error)

	// Event recording
	RecordWoundEvent(e *model.WoundEvent) error
	RecordKillEvent(e *model.KillEvent) error
	RecordSpellTokenEvent(e *model.SpellTokenEvent) error
	RecordMoveEvent(e *model.MoveEvent) error
	RecordRoundEvent(e *model.RoundEvent) error
	RecordObjectiveState(s *model.ObjectiveState) error
	RecordPerformance(p *model.TrackerPerformance) error
}

// Exportable is an optional interface for storage backends that produce
// replay files suitable for sharing after the battle ends.
type Exportable interface {
	GetExportedFilePath() string
}
