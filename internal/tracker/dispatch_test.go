package tracker

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/oprtools/armytracker/internal/battle"
	"github.com/oprtools/armytracker/internal/cache"
	"github.com/oprtools/armytracker/internal/dispatcher"
	"github.com/oprtools/armytracker/internal/logging"
	"github.com/oprtools/armytracker/internal/model"
	"github.com/oprtools/armytracker/internal/parser"
)

// mockLogger implements dispatcher.Logger for testing
type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *mockLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *mockLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *mockLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

// mockBackend implements storage.Backend for testing
type mockBackend struct {
	mu sync.Mutex

	units           []*model.Unit
	objectives      []*model.ObjectiveMarker
	woundEvents     []*model.WoundEvent
	killEvents      []*model.KillEvent
	tokenEvents     []*model.SpellTokenEvent
	moveEvents      []*model.MoveEvent
	roundEvents     []*model.RoundEvent
	objectiveStates []*model.ObjectiveState
	performances    []*model.TrackerPerformance
	initCalled      bool
	closeCalled     bool
	battleStarted   bool
	battleEnded     bool
}

func (b *mockBackend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initCalled = true
	return nil
}

func (b *mockBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeCalled = true
	return nil
}

func (b *mockBackend) StartBattle(battle *model.Battle, campaign *model.Campaign) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	battle.ID = 1
	b.battleStarted = true
	return nil
}

func (b *mockBackend) EndBattle() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.battleEnded = true
	return nil
}

func (b *mockBackend) AddUnit(u *model.Unit) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.units = append(b.units, u)
	return nil
}

func (b *mockBackend) AddObjective(m *model.ObjectiveMarker) (uint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m.ID = uint(len(b.objectives) + 1)
	b.objectives = append(b.objectives, m)
	return m.ID, nil
}

func (b *mockBackend) RecordWoundEvent(e *model.WoundEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.woundEvents = append(b.woundEvents, e)
	return nil
}

func (b *mockBackend) RecordKillEvent(e *model.KillEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.killEvents = append(b.killEvents, e)
	return nil
}

func (b *mockBackend) RecordSpellTokenEvent(e *model.SpellTokenEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokenEvents = append(b.tokenEvents, e)
	return nil
}

func (b *mockBackend) RecordMoveEvent(e *model.MoveEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.moveEvents = append(b.moveEvents, e)
	return nil
}

func (b *mockBackend) RecordRoundEvent(e *model.RoundEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roundEvents = append(b.roundEvents, e)
	return nil
}

func (b *mockBackend) RecordObjectiveState(s *model.ObjectiveState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objectiveStates = append(b.objectiveStates, s)
	return nil
}

func (b *mockBackend) RecordPerformance(p *model.TrackerPerformance) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.performances = append(b.performances, p)
	return nil
}

func newTestManager() (*Manager, *mockBackend) {
	backend := &mockBackend{}
	deps := Dependencies{
		RosterCache:    cache.NewRosterCache(),
		ObjectiveCache: cache.NewObjectiveCache(),
		LogManager:     logging.NewSlogManager(),
		Parser:         parser.NewParser(slog.Default(), "1.0.0", "2.0.0"),
		BattleContext:  battle.NewContext(),
	}
	return NewManager(deps, backend), backend
}

func newTestDispatcher(t *testing.T) *dispatcher.Dispatcher {
	d, err := dispatcher.New(&mockLogger{})
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}
	return d
}

// squadArgs builds :NEW:UNIT: args for a three model squad led by a
// Tough sergeant.
func squadArgs(selectionID string) []string {
	return []string{
		"1", selectionID, "Battle Brothers", "Crusaders", "Alice",
		"0", "3", `[]`,
		`[["m1","Brother",1,false,false,"[]"],["m2","Brother",1,false,false,"[]"],["m3","Sergeant",3,false,true,"[]"]]`,
		"",
	}
}

// casterArgs builds :NEW:UNIT: args for a single model hero caster.
func casterArgs(selectionID string, casterLevel string) []string {
	return []string{
		"1", selectionID, "High Wizard", "Crusaders", "Alice",
		casterLevel, "1", `["Caster"]`,
		`[["h1","High Wizard",4,true,true,"[]"]]`,
		"",
	}
}

func registerUnit(t *testing.T, m *Manager, args []string) {
	t.Helper()
	if _, err := m.handleNewUnit(dispatcher.Event{Command: ":NEW:UNIT:", Args: args}); err != nil {
		t.Fatalf("failed to register unit: %v", err)
	}
}

func TestRegisterHandlers_RegistersAllCommands(t *testing.T) {
	d := newTestDispatcher(t)
	manager, _ := newTestManager()

	manager.RegisterHandlers(d)

	expectedCommands := []string{
		":NEW:BATTLE:",
		":NEW:UNIT:",
		":JOIN:HERO:",
		":WOUND:",
		":HEAL:",
		":TOKENS:",
		":MOVE:",
		":ROUND:",
		":NEW:OBJECTIVE:",
		":OBJECTIVE:",
		":METRIC:",
		":END:BATTLE:",
	}

	for _, cmd := range expectedCommands {
		if !d.HasHandler(cmd) {
			t.Errorf("expected handler for %s to be registered", cmd)
		}
	}
}

func TestHandleNewBattle(t *testing.T) {
	manager, backend := newTestManager()

	args := []string{
		`{"name":"Winter Campaign","system":"grimdark-future","organizer":"Alice"}`,
		`{"battleName":"Assault on Hill 3","missionName":"The Relic","system":"grimdark-future","pointsLimit":2000,"tableWidth":72,"tableHeight":48,"tag":"league","participants":[["Alice","Crusaders"],["Bob","Marauders"]]}`,
	}

	if _, err := manager.handleNewBattle(dispatcher.Event{Command: ":NEW:BATTLE:", Args: args}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !backend.battleStarted {
		t.Error("expected battle to be started in backend")
	}

	current := manager.deps.BattleContext.GetBattle()
	if current.BattleName != "Assault on Hill 3" {
		t.Errorf("expected battle name to be set in context, got %q", current.BattleName)
	}
	if current.ID != 1 {
		t.Errorf("expected battle ID assigned by backend, got %d", current.ID)
	}
	if manager.deps.BattleContext.GetCampaign().Name != "Winter Campaign" {
		t.Errorf("unexpected campaign name %q", manager.deps.BattleContext.GetCampaign().Name)
	}
}

func TestHandleNewUnit_CachesAndStores(t *testing.T) {
	manager, backend := newTestManager()

	registerUnit(t, manager, squadArgs("u1"))

	if len(backend.units) != 1 {
		t.Fatalf("expected 1 unit in backend, got %d", len(backend.units))
	}

	cached, found := manager.deps.RosterCache.GetUnit("u1")
	if !found {
		t.Fatal("expected unit to be cached in RosterCache")
	}
	if cached.Name != "Battle Brothers" {
		t.Errorf("expected cached unit name 'Battle Brothers', got %q", cached.Name)
	}
	if len(cached.Models) != 3 {
		t.Errorf("expected 3 models, got %d", len(cached.Models))
	}
}

func TestHandleWound_AllocationOrder(t *testing.T) {
	manager, backend := newTestManager()
	registerUnit(t, manager, squadArgs("u1"))

	// Two wounds: both rank-and-file brothers go down first
	args := []string{"2", "u1", "2", "enemy fire"}
	if _, err := manager.handleWound(dispatcher.Event{Command: ":WOUND:", Args: args}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(backend.woundEvents) != 2 {
		t.Fatalf("expected 2 wound events, got %d", len(backend.woundEvents))
	}
	if backend.woundEvents[0].ModelID != "m1" || backend.woundEvents[1].ModelID != "m2" {
		t.Errorf("expected wounds on m1 then m2, got %s then %s",
			backend.woundEvents[0].ModelID, backend.woundEvents[1].ModelID)
	}
	if !backend.woundEvents[1].HalfStrength {
		t.Error("expected half strength flag after losing 2 of 3 models")
	}
	if len(backend.killEvents) != 0 {
		t.Errorf("expected no kill events while the sergeant stands, got %d", len(backend.killEvents))
	}
}

func TestHandleWound_DestroysUnit(t *testing.T) {
	manager, backend := newTestManager()
	registerUnit(t, manager, squadArgs("u1"))
	registerUnit(t, manager, squadArgs("u2"))

	// 5 wounds kill all three models (sergeant is Tough(3)); the 6th is lost
	args := []string{"2", "u1", "6", "u2"}
	if _, err := manager.handleWound(dispatcher.Event{Command: ":WOUND:", Args: args}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(backend.woundEvents) != 5 {
		t.Fatalf("expected 5 wound events, got %d", len(backend.woundEvents))
	}
	last := backend.woundEvents[4]
	if !last.UnitDestroyed {
		t.Error("expected final wound event to flag unit destroyed")
	}
	if len(backend.killEvents) != 1 {
		t.Fatalf("expected 1 kill event, got %d", len(backend.killEvents))
	}
	kill := backend.killEvents[0]
	if kill.UnitSelectionID != "u1" {
		t.Errorf("expected kill event for u1, got %s", kill.UnitSelectionID)
	}
	if !kill.KillerSelectionID.Valid || kill.KillerSelectionID.String != "u2" {
		t.Errorf("expected kill credited to u2, got %+v", kill.KillerSelectionID)
	}
}

func TestHandleWound_UnknownUnit(t *testing.T) {
	manager, _ := newTestManager()

	args := []string{"2", "ghost", "1", "enemy fire"}
	_, err := manager.handleWound(dispatcher.Event{Command: ":WOUND:", Args: args})
	if !errors.Is(err, ErrUnknownUnit) {
		t.Errorf("expected ErrUnknownUnit, got %v", err)
	}
}

func TestHandleHeal_CapsAtMaxHP(t *testing.T) {
	manager, backend := newTestManager()
	registerUnit(t, manager, squadArgs("u1"))

	// Wound the sergeant down to 1 (two brothers die first, then 2 on the sergeant)
	woundArgs := []string{"2", "u1", "4", "enemy fire"}
	if _, err := manager.handleWound(dispatcher.Event{Command: ":WOUND:", Args: woundArgs}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Heal 5: sergeant recovers 2 back to max, the rest is lost. Dead
	// brothers stay dead.
	healArgs := []string{"2", "u1", "5", "regeneration"}
	if _, err := manager.handleHeal(dispatcher.Event{Command: ":HEAL:", Args: healArgs}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	healEvents := backend.woundEvents[4:]
	if len(healEvents) != 2 {
		t.Fatalf("expected 2 heal events, got %d", len(healEvents))
	}
	for _, e := range healEvents {
		if e.Damage != -1 {
			t.Errorf("expected heal events to carry damage -1, got %d", e.Damage)
		}
		if e.ModelID != "m3" {
			t.Errorf("expected heals on the sergeant, got %s", e.ModelID)
		}
	}

	unit, _ := manager.deps.RosterCache.GetUnit("u1")
	if unit.Models[2].CurrentHP != 3 {
		t.Errorf("expected sergeant back at 3 wounds, got %d", unit.Models[2].CurrentHP)
	}
	if unit.Models[0].CurrentHP != 0 || unit.Models[1].CurrentHP != 0 {
		t.Error("expected removed models to stay at 0")
	}
}

func TestHandleTokens(t *testing.T) {
	manager, backend := newTestManager()
	registerUnit(t, manager, casterArgs("w1", "2"))

	// Gain 4 then 4 more: capped at 6
	for i := 0; i < 2; i++ {
		args := []string{"1", "w1", "4", ""}
		if _, err := manager.handleTokens(dispatcher.Event{Command: ":TOKENS:", Args: args}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(backend.tokenEvents) != 2 {
		t.Fatalf("expected 2 token events, got %d", len(backend.tokenEvents))
	}
	if backend.tokenEvents[1].Tokens != 6 {
		t.Errorf("expected token balance capped at 6, got %d", backend.tokenEvents[1].Tokens)
	}

	// Spend 4 on a spell
	spend := []string{"1", "w1", "-4", "Fireball"}
	if _, err := manager.handleTokens(dispatcher.Event{Command: ":TOKENS:", Args: spend}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.tokenEvents[2].Tokens != 2 || backend.tokenEvents[2].Spell != "Fireball" {
		t.Errorf("unexpected spend event %+v", backend.tokenEvents[2])
	}

	// Overspend is rejected and leaves the balance untouched
	overspend := []string{"1", "w1", "-3", "Fireball"}
	if _, err := manager.handleTokens(dispatcher.Event{Command: ":TOKENS:", Args: overspend}); err == nil {
		t.Error("expected error when spending more tokens than held")
	}
	unit, _ := manager.deps.RosterCache.GetUnit("w1")
	if unit.SpellTokens != 2 {
		t.Errorf("expected balance unchanged at 2, got %d", unit.SpellTokens)
	}
}

func TestHandleTokens_NonCasterRejected(t *testing.T) {
	manager, _ := newTestManager()
	registerUnit(t, manager, squadArgs("u1"))

	args := []string{"1", "u1", "1", ""}
	if _, err := manager.handleTokens(dispatcher.Event{Command: ":TOKENS:", Args: args}); err == nil {
		t.Error("expected error for non-caster token event")
	}
}

func TestHandleJoinHero_WoundsSpillIntoRetinue(t *testing.T) {
	manager, backend := newTestManager()
	registerUnit(t, manager, squadArgs("u1"))
	registerUnit(t, manager, casterArgs("h1", "2"))

	joinArgs := []string{"u1", "h1"}
	if _, err := manager.handleJoinHero(dispatcher.Event{Command: ":JOIN:HERO:", Args: joinArgs}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 9 wounds: 2 brothers, 3 on the sergeant, then 4 on the joined hero
	args := []string{"3", "u1", "9", "enemy fire"}
	if _, err := manager.handleWound(dispatcher.Event{Command: ":WOUND:", Args: args}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(backend.woundEvents) != 9 {
		t.Fatalf("expected 9 wound events, got %d", len(backend.woundEvents))
	}
	if backend.woundEvents[8].ModelID != "h1" {
		t.Errorf("expected final wound on the joined hero, got %s", backend.woundEvents[8].ModelID)
	}
	if !backend.woundEvents[8].UnitDestroyed {
		t.Error("expected pool destroyed after hero goes down")
	}

	// Detach clears the association
	detach := []string{"u1", ""}
	if _, err := manager.handleJoinHero(dispatcher.Event{Command: ":JOIN:HERO:", Args: detach}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unit, _ := manager.deps.RosterCache.GetUnit("u1")
	if unit.JoinedHeroSelectionID.Valid {
		t.Error("expected joined hero to be cleared")
	}
}

func TestHandleMove(t *testing.T) {
	manager, backend := newTestManager()
	registerUnit(t, manager, squadArgs("u1"))

	// Advance 6 inches exactly: legal
	legal := []string{"1", "u1", "advance", "[10,10]", "[16,10]"}
	if _, err := manager.handleMove(dispatcher.Event{Command: ":MOVE:", Args: legal}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Advance 9 inches: illegal
	illegal := []string{"1", "u1", "advance", "[10,10]", "[19,10]"}
	if _, err := manager.handleMove(dispatcher.Event{Command: ":MOVE:", Args: illegal}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(backend.moveEvents) != 2 {
		t.Fatalf("expected 2 move events, got %d", len(backend.moveEvents))
	}
	if backend.moveEvents[0].Illegal {
		t.Error("expected 6 inch advance to be legal")
	}
	if !backend.moveEvents[1].Illegal {
		t.Error("expected 9 inch advance to be flagged illegal")
	}
	if backend.moveEvents[0].AllowedDistance != 6 {
		t.Errorf("expected allowed distance 6, got %d", backend.moveEvents[0].AllowedDistance)
	}
}

func TestHandleMove_OffTable(t *testing.T) {
	manager, backend := newTestManager()
	manager.deps.BattleContext.SetBattle(
		&model.Battle{TableWidth: 72, TableHeight: 48},
		&model.Campaign{},
	)
	registerUnit(t, manager, squadArgs("u1"))

	// Rush off the table edge
	off := []string{"1", "u1", "rush", "[68,24]", "[76,24]"}
	if _, err := manager.handleMove(dispatcher.Event{Command: ":MOVE:", Args: off}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Same distance inside the bounds
	on := []string{"1", "u1", "rush", "[30,24]", "[38,24]"}
	if _, err := manager.handleMove(dispatcher.Event{Command: ":MOVE:", Args: on}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(backend.moveEvents) != 2 {
		t.Fatalf("expected 2 move events, got %d", len(backend.moveEvents))
	}
	if !backend.moveEvents[0].OffTable {
		t.Error("expected move ending at x=76 on a 72 inch table to be flagged off table")
	}
	if backend.moveEvents[1].OffTable {
		t.Error("expected move inside the bounds to not be flagged")
	}
}

func TestHandleRound_CasterUpkeep(t *testing.T) {
	manager, backend := newTestManager()
	registerUnit(t, manager, squadArgs("u1"))
	registerUnit(t, manager, casterArgs("w1", "2"))

	args := []string{"2"}
	if _, err := manager.handleRound(dispatcher.Event{Command: ":ROUND:", Args: args}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if manager.deps.BattleContext.Round() != 2 {
		t.Errorf("expected context round 2, got %d", manager.deps.BattleContext.Round())
	}
	if len(backend.roundEvents) != 1 {
		t.Fatalf("expected 1 round event, got %d", len(backend.roundEvents))
	}
	if len(backend.tokenEvents) != 1 {
		t.Fatalf("expected 1 upkeep token event, got %d", len(backend.tokenEvents))
	}
	if backend.tokenEvents[0].UnitSelectionID != "w1" || backend.tokenEvents[0].Tokens != 2 {
		t.Errorf("unexpected upkeep event %+v", backend.tokenEvents[0])
	}
}

func TestObjectiveCreateAndSeize(t *testing.T) {
	manager, backend := newTestManager()

	create := []string{"Center Relic", "[36,24]", ""}
	if _, err := manager.handleObjectiveCreate(dispatcher.Event{Command: ":NEW:OBJECTIVE:", Args: create}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(backend.objectives) != 1 {
		t.Fatalf("expected 1 objective in backend, got %d", len(backend.objectives))
	}
	id, found := manager.deps.ObjectiveCache.Get("Center Relic")
	if !found || id != 1 {
		t.Fatalf("expected objective cached with id 1, got %d found=%v", id, found)
	}

	seize := []string{"3", "Center Relic", "Alice"}
	if _, err := manager.handleObjectiveSeize(dispatcher.Event{Command: ":OBJECTIVE:", Args: seize}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(backend.objectiveStates) != 1 {
		t.Fatalf("expected 1 objective state, got %d", len(backend.objectiveStates))
	}
	state := backend.objectiveStates[0]
	if state.ObjectiveID != 1 || state.SeizedBy != "Alice" || state.Round != 3 {
		t.Errorf("unexpected objective state %+v", state)
	}

	// Seizing an unknown objective is rejected
	unknown := []string{"3", "Ghost Marker", "Bob"}
	if _, err := manager.handleObjectiveSeize(dispatcher.Event{Command: ":OBJECTIVE:", Args: unknown}); err == nil {
		t.Error("expected error for unknown objective")
	}
}

func TestBufferedWoundFlow(t *testing.T) {
	d := newTestDispatcher(t)
	manager, backend := newTestManager()
	manager.RegisterHandlers(d)

	registerUnit(t, manager, squadArgs("u1"))

	if _, err := d.Dispatch(dispatcher.Event{Command: ":WOUND:", Args: []string{"1", "u1", "1", "enemy fire"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Wait for the buffered handler to process
	deadline := time.After(2 * time.Second)
	for {
		backend.mu.Lock()
		n := len(backend.woundEvents)
		backend.mu.Unlock()
		if n == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for wound event to be processed")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestHandleEndBattle(t *testing.T) {
	manager, backend := newTestManager()

	if _, err := manager.handleEndBattle(dispatcher.Event{Command: ":END:BATTLE:"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !backend.battleEnded {
		t.Error("expected battle to be ended in backend")
	}
}
