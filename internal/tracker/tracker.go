package tracker

import (
	"fmt"
	"time"

	"github.com/oprtools/armytracker/internal/battle"
	"github.com/oprtools/armytracker/internal/cache"
	"github.com/oprtools/armytracker/internal/influx"
	"github.com/oprtools/armytracker/internal/logging"
	"github.com/oprtools/armytracker/internal/model"
	"github.com/oprtools/armytracker/internal/parser"
	"github.com/oprtools/armytracker/internal/storage"
)

// ErrUnknownUnit is returned when an event references a selectionId that
// was never registered for the current battle.
var ErrUnknownUnit = fmt.Errorf("unit not found in roster cache")

// Dependencies holds all dependencies for the tracker manager
type Dependencies struct {
	RosterCache    *cache.RosterCache
	ObjectiveCache *cache.ObjectiveCache
	LogManager     *logging.SlogManager
	Parser         *parser.Parser
	BattleContext  *battle.Context

	// Influx is optional; :METRIC: events are dropped when nil.
	Influx *influx.Manager
}

// Manager owns the game-state handlers that sit between the dispatcher
// and the storage backend.
type Manager struct {
	deps    Dependencies
	backend storage.Backend
}

// NewManager creates a new tracker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// Backend returns the storage backend the manager writes to.
func (m *Manager) Backend() storage.Backend {
	return m.backend
}

// DBWriteDurationProvider is an optional interface that backends can implement
// to expose their last DB write duration for monitoring.
type DBWriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}

// GetLastDBWriteDuration returns the duration of the last DB write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.backend.(DBWriteDurationProvider); ok {
		return p.GetLastDBWriteDuration()
	}
	return 0
}

// WriteQueueProvider is an optional interface that backends can implement
// to expose their write queue depths for monitoring.
type WriteQueueProvider interface {
	QueueLengths() model.WriteQueueLengths
}

// GetWriteQueueLengths returns the backend write queue depths. Returns
// zero lengths if the backend doesn't queue writes.
func (m *Manager) GetWriteQueueLengths() model.WriteQueueLengths {
	if p, ok := m.backend.(WriteQueueProvider); ok {
		return p.QueueLengths()
	}
	return model.WriteQueueLengths{}
}

// battleID returns the database ID of the battle in progress.
func (m *Manager) battleID() uint {
	return m.deps.BattleContext.GetBattle().ID
}

// selectHealTarget returns the model that should receive the next point
// of healing: the most wounded model still standing. Models already
// removed from play cannot be healed back.
func selectHealTarget(baseUnit, joinedHero *model.Unit) *model.UnitModel {
	pool := make([]*model.UnitModel, 0, len(baseUnit.Models))
	for i := range baseUnit.Models {
		pool = append(pool, &baseUnit.Models[i])
	}
	if joinedHero != nil {
		for i := range joinedHero.Models {
			pool = append(pool, &joinedHero.Models[i])
		}
	}

	var target *model.UnitModel
	for _, mdl := range pool {
		if mdl.CurrentHP > 0 && mdl.CurrentHP < mdl.MaxHP {
			if target == nil || mdl.CurrentHP < target.CurrentHP {
				target = mdl
			}
		}
	}
	return target
}
