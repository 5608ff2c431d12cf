package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oprtools/armytracker/internal/dispatcher"
	"github.com/oprtools/armytracker/internal/influx"
	"github.com/oprtools/armytracker/internal/model"
	"github.com/oprtools/armytracker/internal/rules"
	"github.com/oprtools/armytracker/internal/storage"
	"github.com/oprtools/armytracker/internal/table"
	"github.com/oprtools/armytracker/internal/util"
)

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Battle and unit registration - sync (events reference them)
	d.Register(":NEW:BATTLE:", m.handleNewBattle, dispatcher.Logged())
	d.Register(":NEW:UNIT:", m.handleNewUnit, dispatcher.Logged())
	d.Register(":JOIN:HERO:", m.handleJoinHero, dispatcher.Logged())

	// Combat bookkeeping - buffered
	d.Register(":WOUND:", m.handleWound, dispatcher.Buffered(2000), dispatcher.Logged())
	d.Register(":HEAL:", m.handleHeal, dispatcher.Buffered(2000), dispatcher.Logged())
	d.Register(":TOKENS:", m.handleTokens, dispatcher.Buffered(1000), dispatcher.Logged())
	d.Register(":MOVE:", m.handleMove, dispatcher.Buffered(2000), dispatcher.Logged())

	// Round boundaries - sync (token upkeep must land before activations)
	d.Register(":ROUND:", m.handleRound, dispatcher.Logged())

	// Objective creation - sync (need to cache before seizes arrive)
	d.Register(":NEW:OBJECTIVE:", m.handleObjectiveCreate, dispatcher.Logged())
	// Objective control changes - buffered
	d.Register(":OBJECTIVE:", m.handleObjectiveSeize, dispatcher.Buffered(500), dispatcher.Logged())

	// Client metrics - buffered
	d.Register(":METRIC:", m.handleMetric, dispatcher.Buffered(1000))

	// Battle end - sync (flushes queues and exports)
	d.Register(":END:BATTLE:", m.handleEndBattle, dispatcher.Logged())
}

func (m *Manager) handleNewBattle(e dispatcher.Event) (any, error) {
	battleObj, campaignObj, err := m.deps.Parser.ParseBattle(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log new battle: %w", err)
	}

	logger := m.deps.LogManager.Logger()

	// StartBattle assigns the battle ID when a database is behind the
	// backend, so it runs before the context and parser pick the pointer up.
	if err := m.backend.StartBattle(&battleObj, &campaignObj); err != nil {
		logger.Error("Failed to start battle in storage backend", "error", err)
		return nil, err
	}

	m.deps.BattleContext.SetBattle(&battleObj, &campaignObj)
	m.deps.Parser.SetBattle(&battleObj)
	m.deps.RosterCache.Reset()
	m.deps.ObjectiveCache.Reset()

	logger.Debug("Battle data",
		"battleName", battleObj.BattleName,
		"missionName", battleObj.MissionName,
		"campaign", campaignObj.Name,
		"system", battleObj.System,
		"pointsLimit", battleObj.PointsLimit)

	return nil, nil
}

func (m *Manager) handleNewUnit(e dispatcher.Event) (any, error) {
	unit, err := m.deps.Parser.ParseUnit(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log new unit: %w", err)
	}

	// Always cache for event handler lookups
	m.deps.RosterCache.AddUnit(&unit)

	if err := m.backend.AddUnit(&unit); err != nil {
		return nil, fmt.Errorf("failed to store unit %s: %w", unit.SelectionID, err)
	}

	return nil, nil
}

func (m *Manager) handleJoinHero(e dispatcher.Event) (any, error) {
	cmd, err := m.deps.Parser.ParseJoinHero(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log hero join: %w", err)
	}

	m.deps.RosterCache.Lock()
	defer m.deps.RosterCache.Unlock()

	unit, ok := m.deps.RosterCache.Units[cmd.SelectionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUnit, cmd.SelectionID)
	}

	if cmd.HeroSelectionID == "" {
		unit.JoinedHeroSelectionID = sql.NullString{}
		return nil, nil
	}

	hero, ok := m.deps.RosterCache.Units[cmd.HeroSelectionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUnit, cmd.HeroSelectionID)
	}
	unit.JoinedHeroSelectionID = sql.NullString{String: hero.SelectionID, Valid: true}

	return nil, nil
}

func (m *Manager) handleWound(e dispatcher.Event) (any, error) {
	cmd, err := m.deps.Parser.ParseWound(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log wound: %w", err)
	}

	m.deps.RosterCache.Lock()
	defer m.deps.RosterCache.Unlock()

	unit, ok := m.deps.RosterCache.Units[cmd.SelectionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUnit, cmd.SelectionID)
	}
	var hero *model.Unit
	if unit.JoinedHeroSelectionID.Valid {
		hero = m.deps.RosterCache.Units[unit.JoinedHeroSelectionID.String]
	}

	for i := 0; i < cmd.Damage; i++ {
		target := rules.SelectWoundTarget(unit, hero)
		if target == nil {
			// Whole pool already down; wounds past this point are lost.
			break
		}
		target.CurrentHP--

		destroyed := rules.SelectWoundTarget(unit, hero) == nil
		event := model.WoundEvent{
			Time:            time.Now(),
			BattleID:        m.battleID(),
			Round:           cmd.Round,
			UnitSelectionID: cmd.SelectionID,
			ModelID:         target.ModelID,
			Damage:          1,
			RemainingHP:     target.CurrentHP,
			Source:          cmd.Source,
			HalfStrength:    rules.IsAtHalfStrength(unit),
			UnitDestroyed:   destroyed,
		}
		m.backend.RecordWoundEvent(&event)

		if destroyed {
			m.recordKill(cmd.Round, cmd.SelectionID, cmd.Source)
			break
		}
	}

	return nil, nil
}

// recordKill emits a KillEvent crediting the source unit when it is a
// known selectionId. Caller must hold the roster cache lock.
func (m *Manager) recordKill(round uint, selectionID, source string) {
	event := model.KillEvent{
		Time:            time.Now(),
		BattleID:        m.battleID(),
		Round:           round,
		UnitSelectionID: selectionID,
		EventText:       source,
	}
	if _, ok := m.deps.RosterCache.Units[source]; ok {
		event.KillerSelectionID = sql.NullString{String: source, Valid: true}
	}
	m.backend.RecordKillEvent(&event)
}

func (m *Manager) handleHeal(e dispatcher.Event) (any, error) {
	cmd, err := m.deps.Parser.ParseHeal(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log heal: %w", err)
	}

	m.deps.RosterCache.Lock()
	defer m.deps.RosterCache.Unlock()

	unit, ok := m.deps.RosterCache.Units[cmd.SelectionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUnit, cmd.SelectionID)
	}
	var hero *model.Unit
	if unit.JoinedHeroSelectionID.Valid {
		hero = m.deps.RosterCache.Units[unit.JoinedHeroSelectionID.String]
	}

	amount := -cmd.Damage
	for i := 0; i < amount; i++ {
		target := selectHealTarget(unit, hero)
		if target == nil {
			// Nothing left to heal; excess healing is lost.
			break
		}
		target.CurrentHP++

		event := model.WoundEvent{
			Time:            time.Now(),
			BattleID:        m.battleID(),
			Round:           cmd.Round,
			UnitSelectionID: cmd.SelectionID,
			ModelID:         target.ModelID,
			Damage:          -1,
			RemainingHP:     target.CurrentHP,
			Source:          cmd.Source,
			HalfStrength:    rules.IsAtHalfStrength(unit),
		}
		m.backend.RecordWoundEvent(&event)
	}

	return nil, nil
}

func (m *Manager) handleTokens(e dispatcher.Event) (any, error) {
	cmd, err := m.deps.Parser.ParseTokens(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log spell tokens: %w", err)
	}

	m.deps.RosterCache.Lock()
	defer m.deps.RosterCache.Unlock()

	unit, ok := m.deps.RosterCache.Units[cmd.SelectionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUnit, cmd.SelectionID)
	}
	if !unit.IsCaster() {
		return nil, fmt.Errorf("unit %s is not a caster", cmd.SelectionID)
	}

	if cmd.Delta > 0 {
		unit.SpellTokens = rules.GainTokens(unit.SpellTokens, uint8(cmd.Delta))
	} else {
		remaining, ok := rules.SpendTokens(unit.SpellTokens, uint8(-cmd.Delta))
		if !ok {
			return nil, fmt.Errorf("unit %s cannot spend %d tokens, holds %d",
				cmd.SelectionID, -cmd.Delta, unit.SpellTokens)
		}
		unit.SpellTokens = remaining
	}

	event := model.SpellTokenEvent{
		Time:            time.Now(),
		BattleID:        m.battleID(),
		Round:           cmd.Round,
		UnitSelectionID: cmd.SelectionID,
		Delta:           cmd.Delta,
		Tokens:          unit.SpellTokens,
		Spell:           cmd.Spell,
	}
	m.backend.RecordSpellTokenEvent(&event)

	return nil, nil
}

func (m *Manager) handleMove(e dispatcher.Event) (any, error) {
	cmd, err := m.deps.Parser.ParseMove(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log move: %w", err)
	}

	unit, ok := m.deps.RosterCache.GetUnit(cmd.SelectionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUnit, cmd.SelectionID)
	}

	allowed := rules.CalculateMovement(unit, cmd.Action)
	declared := table.Distance(cmd.From, cmd.To)

	// Zero dimensions mean the client never reported a table size, so
	// bounds cannot be checked.
	offTable := false
	if b := m.deps.BattleContext.GetBattle(); b.TableWidth > 0 && b.TableHeight > 0 {
		offTable = !table.WithinTable(cmd.To, b.TableWidth, b.TableHeight)
	}

	event := model.MoveEvent{
		Time:             time.Now(),
		BattleID:         m.battleID(),
		Round:            cmd.Round,
		UnitSelectionID:  cmd.SelectionID,
		Action:           string(cmd.Action),
		AllowedDistance:  allowed,
		DeclaredDistance: declared,
		FromPosition:     cmd.From,
		ToPosition:       cmd.To,
		Illegal:          declared > float64(allowed),
		OffTable:         offTable,
	}
	m.backend.RecordMoveEvent(&event)

	return nil, nil
}

func (m *Manager) handleRound(e dispatcher.Event) (any, error) {
	event, err := m.deps.Parser.ParseRound(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log round: %w", err)
	}

	m.deps.BattleContext.SetRound(event.Round)

	// Round upkeep: every caster still on the table gains tokens equal
	// to its caster level, capped at the token limit.
	m.deps.RosterCache.Lock()
	for _, unit := range m.deps.RosterCache.Units {
		if !unit.IsCaster() || unit.ActiveModels() == 0 {
			continue
		}
		before := unit.SpellTokens
		unit.SpellTokens = rules.GainTokens(unit.SpellTokens, unit.CasterLevel)
		tokenEvent := model.SpellTokenEvent{
			Time:            time.Now(),
			BattleID:        m.battleID(),
			Round:           event.Round,
			UnitSelectionID: unit.SelectionID,
			Delta:           int(unit.SpellTokens) - int(before),
			Tokens:          unit.SpellTokens,
		}
		m.backend.RecordSpellTokenEvent(&tokenEvent)
	}
	m.deps.RosterCache.Unlock()

	m.backend.RecordRoundEvent(&event)

	return nil, nil
}

func (m *Manager) handleObjectiveCreate(e dispatcher.Event) (any, error) {
	marker, err := m.deps.Parser.ParseObjectiveCreate(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to create objective: %w", err)
	}

	id, err := m.backend.AddObjective(&marker)
	if err != nil {
		return nil, fmt.Errorf("failed to store objective %s: %w", marker.Name, err)
	}
	// Cache the assigned ID so seize events can find this objective
	m.deps.ObjectiveCache.Set(marker.Name, id)

	return nil, nil
}

func (m *Manager) handleObjectiveSeize(e dispatcher.Event) (any, error) {
	cmd, err := m.deps.Parser.ParseObjectiveSeize(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to log objective seize: %w", err)
	}

	id, ok := m.deps.ObjectiveCache.Get(cmd.Name)
	if !ok {
		return nil, fmt.Errorf("objective %q not found in cache", cmd.Name)
	}

	state := model.ObjectiveState{
		Time:        time.Now(),
		BattleID:    m.battleID(),
		ObjectiveID: id,
		Round:       cmd.Round,
		SeizedBy:    cmd.SeizedBy,
	}
	m.backend.RecordObjectiveState(&state)

	return nil, nil
}

func (m *Manager) handleMetric(e dispatcher.Event) (any, error) {
	if m.deps.Influx == nil {
		return nil, nil
	}

	bucket, point, err := influx.ProcessMetricData(e.Args, util.FixEscapeQuotes, util.TrimQuotes)
	if err != nil {
		return nil, fmt.Errorf("failed to process metric: %w", err)
	}
	if err := m.deps.Influx.WritePoint(context.Background(), bucket, point); err != nil {
		return nil, fmt.Errorf("failed to write metric: %w", err)
	}

	return nil, nil
}

func (m *Manager) handleEndBattle(e dispatcher.Event) (any, error) {
	logger := m.deps.LogManager.Logger()

	if err := m.backend.EndBattle(); err != nil {
		logger.Error("Failed to end battle in storage backend", "error", err)
		return nil, err
	}

	if exp, ok := m.backend.(storage.Exportable); ok {
		logger.Info("Battle replay exported", "path", exp.GetExportedFilePath())
	}

	return nil, nil
}
