// Package gormstorage implements the storage.Backend interface using GORM
// with internal queues and a background DB writer goroutine. It serves both
// the postgres and sqlite storage types.
package gormstorage

import (
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/oprtools/armytracker/internal/cache"
	"github.com/oprtools/armytracker/internal/logging"
	"github.com/oprtools/armytracker/internal/model"
	"github.com/oprtools/armytracker/internal/queue"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB             *gorm.DB
	ObjectiveCache *cache.ObjectiveCache
	LogManager     *logging.SlogManager
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Units            *queue.Queue[model.Unit]
	WoundEvents      *queue.Queue[model.WoundEvent]
	KillEvents       *queue.Queue[model.KillEvent]
	SpellTokenEvents *queue.Queue[model.SpellTokenEvent]
	MoveEvents       *queue.Queue[model.MoveEvent]
	RoundEvents      *queue.Queue[model.RoundEvent]
	ObjectiveStates  *queue.Queue[model.ObjectiveState]
	Performances     *queue.Queue[model.TrackerPerformance]
}

func newQueues() *queues {
	return &queues{
		Units:            queue.New[model.Unit](),
		WoundEvents:      queue.New[model.WoundEvent](),
		KillEvents:       queue.New[model.KillEvent](),
		SpellTokenEvents: queue.New[model.SpellTokenEvent](),
		MoveEvents:       queue.New[model.MoveEvent](),
		RoundEvents:      queue.New[model.RoundEvent](),
		ObjectiveStates:  queue.New[model.ObjectiveState](),
		Performances:     queue.New[model.TrackerPerformance](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	queues   *queues
	battleID atomic.Uint64
	stopChan chan struct{}
	dbReady  bool

	lastDBWriteDuration atomic.Int64 // nanoseconds
	queuedUnitModels    atomic.Int64
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{
		deps: deps,
	}
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})

	if b.deps.DB != nil {
		if err := b.setupDB(); err != nil {
			return fmt.Errorf("failed to setup DB: %w", err)
		}
		b.dbReady = true
	}

	b.startDBWriters()
	return nil
}

// setupDB migrates tables and creates default group settings if they don't exist.
func (b *Backend) setupDB() error {
	db := b.deps.DB
	log := b.deps.LogManager

	if !db.Migrator().HasTable(&model.TrackerInfo{}) {
		if err := db.AutoMigrate(&model.TrackerInfo{}); err != nil {
			log.WriteLog("setupDB", fmt.Sprintf("Failed to create tracker_infos table: %s", err), "ERROR")
			return fmt.Errorf("failed to auto-migrate TrackerInfo: %w", err)
		}
		if err := db.Create(&model.TrackerInfo{
			GroupName:        "Army Tracker",
			GroupDescription: "Tabletop battle tracker",
		}).Error; err != nil {
			return fmt.Errorf("failed to create tracker_infos entry: %w", err)
		}
	}

	log.WriteLog("setupDB", "Migrating schema", "INFO")
	models := model.DatabaseModels
	if db.Name() == "sqlite" {
		models = model.DatabaseModelsSQLite
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.WriteLog("setupDB", "Database setup complete", "INFO")
	return nil
}

// Close stops the DB writer goroutine.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
	}
	return nil
}

// StartBattle performs campaign get-or-insert and battle create in the DB.
func (b *Backend) StartBattle(battle *model.Battle, campaign *model.Campaign) error {
	if b.deps.DB == nil {
		return nil
	}

	db := b.deps.DB
	log := b.deps.LogManager

	// Campaign get-or-insert
	created, err := campaign.GetOrInsert(db)
	if err != nil {
		return fmt.Errorf("failed to get or insert campaign: %w", err)
	}
	if created {
		log.WriteLog("StartBattle", fmt.Sprintf("Created campaign %q", campaign.Name), "INFO")
	}

	// Battle create
	battle.CampaignID = campaign.ID
	battle.Campaign = *campaign
	if err := db.Create(battle).Error; err != nil {
		return fmt.Errorf("failed to insert new battle: %w", err)
	}

	// Store battle ID for the DB writer goroutine
	b.battleID.Store(uint64(battle.ID))

	return nil
}

// SetBattleID sets the current battle ID for the DB writer (used by CLI tools).
func (b *Backend) SetBattleID(id uint) {
	b.battleID.Store(uint64(id))
}

// EndBattle drains the queues one final time so nothing is lost on shutdown.
func (b *Backend) EndBattle() error {
	if b.dbReady {
		b.drainQueues()
	}
	return nil
}

// AddUnit pushes a unit and its models to the write queue.
func (b *Backend) AddUnit(u *model.Unit) error {
	b.queues.Units.Push(*u)
	b.queuedUnitModels.Add(int64(len(u.Models)))
	return nil
}

// AddObjective inserts an objective synchronously (not queued) because
// objectives are low-volume and need immediate ID assignment for the
// ObjectiveCache. Returns the DB-assigned ID (0 if no DB is configured).
func (b *Backend) AddObjective(m *model.ObjectiveMarker) (uint, error) {
	if b.deps.DB != nil {
		m.BattleID = uint(b.battleID.Load())
		if err := b.deps.DB.Create(m).Error; err != nil {
			return 0, fmt.Errorf("failed to insert objective: %w", err)
		}
		if b.deps.ObjectiveCache != nil {
			b.deps.ObjectiveCache.Set(m.Name, m.ID)
		}
		return m.ID, nil
	}
	return 0, nil
}

// RecordWoundEvent queues a wound event.
func (b *Backend) RecordWoundEvent(e *model.WoundEvent) error {
	b.queues.WoundEvents.Push(*e)
	return nil
}

// RecordKillEvent queues a kill event.
func (b *Backend) RecordKillEvent(e *model.KillEvent) error {
	b.queues.KillEvents.Push(*e)
	return nil
}

// RecordSpellTokenEvent queues a spell token event.
func (b *Backend) RecordSpellTokenEvent(e *model.SpellTokenEvent) error {
	b.queues.SpellTokenEvents.Push(*e)
	return nil
}

// RecordMoveEvent queues a move event.
func (b *Backend) RecordMoveEvent(e *model.MoveEvent) error {
	b.queues.MoveEvents.Push(*e)
	return nil
}

// RecordRoundEvent queues a round event.
func (b *Backend) RecordRoundEvent(e *model.RoundEvent) error {
	b.queues.RoundEvents.Push(*e)
	return nil
}

// RecordObjectiveState queues an objective control change.
func (b *Backend) RecordObjectiveState(s *model.ObjectiveState) error {
	b.queues.ObjectiveStates.Push(*s)
	return nil
}

// RecordPerformance queues a tracker performance row.
func (b *Backend) RecordPerformance(p *model.TrackerPerformance) error {
	b.queues.Performances.Push(*p)
	return nil
}

// GetLastDBWriteDuration returns the duration of the most recent write cycle.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastDBWriteDuration.Load())
}

// DB exposes the underlying GORM handle for callers that read directly,
// like the status monitor and the export CLI.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// QueueLengths reports the current depth of each write queue.
func (b *Backend) QueueLengths() model.WriteQueueLengths {
	return model.WriteQueueLengths{
		Units:            uint16(b.queues.Units.Len()),
		UnitModels:       uint16(b.queuedUnitModels.Load()),
		WoundEvents:      uint16(b.queues.WoundEvents.Len()),
		KillEvents:       uint16(b.queues.KillEvents.Len()),
		SpellTokenEvents: uint16(b.queues.SpellTokenEvents.Len()),
		MoveEvents:       uint16(b.queues.MoveEvents.Len()),
		RoundEvents:      uint16(b.queues.RoundEvents.Len()),
		ObjectiveStates:  uint16(b.queues.ObjectiveStates.Len()),
	}
}

// writeQueue writes all items from a queue to the database in a transaction.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string), prepare func([]T), onSuccess func([]T)) {
	if q.Empty() {
		return
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if prepare != nil {
		prepare(items)
	}
	if err := tx.Create(&items).Error; err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
		tx.Rollback()
		q.Push(items...)
		return
	}

	tx.Commit()
	if onSuccess != nil {
		onSuccess(items)
	}
}

// drainQueues writes all pending queue items to the database once.
func (b *Backend) drainQueues() {
	log := b.deps.LogManager.WriteLog
	battleID := uint(b.battleID.Load())

	stampUnits := func(items []model.Unit) {
		for i := range items {
			items[i].BattleID = battleID
			for j := range items[i].Models {
				items[i].Models[j].BattleID = battleID
			}
		}
	}
	countUnitsWritten := func(items []model.Unit) {
		for i := range items {
			b.queuedUnitModels.Add(-int64(len(items[i].Models)))
		}
	}
	stampWoundEvents := func(items []model.WoundEvent) {
		for i := range items {
			items[i].BattleID = battleID
		}
	}
	stampKillEvents := func(items []model.KillEvent) {
		for i := range items {
			items[i].BattleID = battleID
		}
	}
	stampSpellTokenEvents := func(items []model.SpellTokenEvent) {
		for i := range items {
			items[i].BattleID = battleID
		}
	}
	stampMoveEvents := func(items []model.MoveEvent) {
		for i := range items {
			items[i].BattleID = battleID
		}
	}
	stampRoundEvents := func(items []model.RoundEvent) {
		for i := range items {
			items[i].BattleID = battleID
		}
	}
	stampObjectiveStates := func(items []model.ObjectiveState) {
		for i := range items {
			items[i].BattleID = battleID
		}
	}
	stampPerformances := func(items []model.TrackerPerformance) {
		for i := range items {
			items[i].BattleID = battleID
		}
	}

	start := time.Now()

	// Entities first so events reference existing units
	writeQueue(b.deps.DB, b.queues.Units, "units", log, stampUnits, countUnitsWritten)

	// Events
	writeQueue(b.deps.DB, b.queues.WoundEvents, "wound events", log, stampWoundEvents, nil)
	writeQueue(b.deps.DB, b.queues.KillEvents, "kill events", log, stampKillEvents, nil)
	writeQueue(b.deps.DB, b.queues.SpellTokenEvents, "spell token events", log, stampSpellTokenEvents, nil)
	writeQueue(b.deps.DB, b.queues.MoveEvents, "move events", log, stampMoveEvents, nil)
	writeQueue(b.deps.DB, b.queues.RoundEvents, "round events", log, stampRoundEvents, nil)
	writeQueue(b.deps.DB, b.queues.ObjectiveStates, "objective states", log, stampObjectiveStates, nil)
	writeQueue(b.deps.DB, b.queues.Performances, "performances", log, stampPerformances, nil)

	b.lastDBWriteDuration.Store(int64(time.Since(start)))
}

// startDBWriters starts the background goroutine that periodically drains queues into the DB.
func (b *Backend) startDBWriters() {
	go func() {
		for {
			select {
			case <-b.stopChan:
				return
			default:
			}

			if !b.dbReady {
				time.Sleep(1 * time.Second)
				continue
			}

			b.drainQueues()

			time.Sleep(2 * time.Second)
		}
	}()
}
