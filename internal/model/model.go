package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oprtools/armytracker/internal/util"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&TrackerInfo{},
	&Campaign{},
	&Battle{},
	&Unit{},
	&UnitModel{},
	&WoundEvent{},
	&KillEvent{},
	&SpellTokenEvent{},
	&MoveEvent{},
	&RoundEvent{},
	&ObjectiveMarker{},
	&ObjectiveState{},
	&TrackerPerformance{},
}

var DatabaseModelsSQLite = []interface{}{
	&TrackerInfo{},
	&Campaign{},
	&Battle{},
	&Unit{},
	&UnitModel{},
	&WoundEvent{},
	&KillEvent{},
	&SpellTokenEvent{},
	&MoveEvent{},
	&RoundEvent{},
	&ObjectiveMarker{},
	&ObjectiveState{},
	&TrackerPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// TrackerInfo contains group information about the instance
type TrackerInfo struct {
	gorm.Model
	GroupName        string `json:"groupName" gorm:"size:127"` // primary key
	GroupDescription string `json:"groupDescription" gorm:"size:255"`
	GroupWebsite     string `json:"groupURL" gorm:"size:255"`
	GroupLogo        string `json:"groupLogoURL" gorm:"size:255"`
}

func (*TrackerInfo) TableName() string {
	return "tracker_infos"
}

// TrackerPerformance is the model for tracker performance metrics
type TrackerPerformance struct {
	Time                time.Time         `json:"time" gorm:"type:timestamptz;index:idx_time"`
	BattleID            uint              `json:"battleId" gorm:"index:idx_trackerperformance_battle_id"`
	Battle              Battle            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:BattleID;"`
	BufferLengths       BufferLengths     `json:"bufferLengths" gorm:"embedded;embeddedPrefix:buffer_"`
	WriteQueueLengths   WriteQueueLengths `json:"writeQueueLengths" gorm:"embedded;embeddedPrefix:writequeue_"`
	LastWriteDurationMs float32           `json:"lastWriteDurationMs"`
}

func (*TrackerPerformance) TableName() string {
	return "tracker_performances"
}

// BufferLengths is the model for the dispatch buffer lengths
type BufferLengths struct {
	WoundEvents      uint16 `json:"woundEvents"`
	SpellTokenEvents uint16 `json:"spellTokenEvents"`
	MoveEvents       uint16 `json:"moveEvents"`
	RoundEvents      uint16 `json:"roundEvents"`
	ObjectiveStates  uint16 `json:"objectiveStates"`
	MetricEvents     uint16 `json:"metricEvents"`
}

// WriteQueueLengths is the model for the write queue lengths
type WriteQueueLengths struct {
	Units            uint16 `json:"units"`
	UnitModels       uint16 `json:"unitModels"`
	WoundEvents      uint16 `json:"woundEvents"`
	KillEvents       uint16 `json:"killEvents"`
	SpellTokenEvents uint16 `json:"spellTokenEvents"`
	MoveEvents       uint16 `json:"moveEvents"`
	RoundEvents      uint16 `json:"roundEvents"`
	ObjectiveStates  uint16 `json:"objectiveStates"`
}

////////////////////////
// CAMPAIGN MODELS
////////////////////////

// Campaign is the main model for a campaign
type Campaign struct {
	gorm.Model
	Name        string  `json:"name" gorm:"size:127"`
	System      string  `json:"system" gorm:"size:64"` // game system, e.g. grimdark-future
	PointsLimit uint    `json:"pointsLimit"`
	Organizer   string  `json:"organizer" gorm:"size:64"`
	Battles     []Battle
}

func (*Campaign) TableName() string {
	return "campaigns"
}

func (c *Campaign) GetOrInsert(db *gorm.DB) (
	created bool,
	err error,
) {
	var existing Campaign
	err = db.Where("name = ?", c.Name).First(&existing).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// insert
			err = db.Create(c).Error
			return true, err
		}
		return false, err
	}
	// overwrite with db record if found
	*c = existing
	return false, nil
}

// Battle is the main model for a single game on the table
type Battle struct {
	gorm.Model
	BattleName     string    `json:"battleName" gorm:"size:200"`
	MissionName    string    `json:"missionName" gorm:"size:200"` // campaign mission this battle plays out
	StartTime      time.Time `json:"battleStart" gorm:"type:timestamptz;index:idx_battle_start"`
	CampaignID     uint
	Campaign       Campaign `gorm:"foreignkey:CampaignID"`
	System         string   `json:"system" gorm:"size:64"`
	PointsLimit    uint     `json:"pointsLimit"`
	TableWidth     float64  `json:"tableWidth" gorm:"default:72"`  // inches
	TableHeight    float64  `json:"tableHeight" gorm:"default:48"` // inches
	Round          uint     `json:"round" gorm:"default:0"`
	TrackerVersion string   `json:"trackerVersion" gorm:"size:64;default:1.0.0"`
	ClientVersion  string   `json:"clientVersion" gorm:"size:64;default:1.0.0"`
	Tag            string   `json:"tag" gorm:"size:127"`

	Participants datatypes.JSON `json:"participants" gorm:"type:jsonb;default:'[]'"` // player/army pairs

	Units            []Unit
	WoundEvents      []WoundEvent
	KillEvents       []KillEvent
	SpellTokenEvents []SpellTokenEvent
	MoveEvents       []MoveEvent
	RoundEvents      []RoundEvent
	ObjectiveMarkers []ObjectiveMarker
	ObjectiveStates  []ObjectiveState
}

func (*Battle) TableName() string {
	return "battles"
}

// Unit is a deployed army unit
// Uses composite primary key (BattleID, SelectionID) - SelectionID is the
// roster-assigned identifier, unique within an army list
//
// Client Command: :NEW:UNIT:
// Args: [round, selectionId, name, armyName, player, casterLevel, startingSize, rules, models, joinedHeroId]
type Unit struct {
	BattleID    uint           `json:"battleId" gorm:"primaryKey;autoIncrement:false"`
	SelectionID string         `json:"selectionId" gorm:"primaryKey;size:64"` // roster-assigned identifier
	Battle      Battle         `gorm:"foreignkey:BattleID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"deletedAt" gorm:"index"`
	JoinTime    time.Time      `json:"joinTime" gorm:"type:timestamptz;NOT NULL"` // Server time when unit was registered
	JoinRound   uint           `json:"joinRound"`                                 // Round when unit entered play

	Name         string         `json:"name" gorm:"size:127"`                  // Unit name from the roster
	ArmyName     string         `json:"armyName" gorm:"size:127"`              // Owning army list name
	Player       string         `json:"player" gorm:"size:64"`                 // Controlling player
	CasterLevel  uint8          `json:"casterLevel" gorm:"default:0"`          // Caster(X) level, 0 for non-casters
	StartingSize int            `json:"startingSize"`                          // Model count at deployment
	Rules        datatypes.JSON `json:"-" gorm:"type:jsonb;default:'[]'"`      // Special rule tags as JSON array
	PointsCost   uint           `json:"pointsCost"`                            // Roster points cost

	// JoinedHeroSelectionID points at the hero currently attached to this
	// unit. Null when no hero is joined.
	JoinedHeroSelectionID sql.NullString `json:"joinedHeroSelectionId" gorm:"size:64;default:NULL"`

	// RuleTags mirrors Rules for in-memory lookups, populated by the parser.
	RuleTags []string `json:"rules" gorm:"-"`
	// SpellTokens is live bookkeeping state, not persisted per-unit. Token
	// history lives in SpellTokenEvent rows.
	SpellTokens uint8 `json:"spellTokens" gorm:"-"`

	Models []UnitModel `gorm:"foreignkey:BattleID,UnitSelectionID;references:BattleID,SelectionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*Unit) TableName() string {
	return "units"
}

// HasRule reports whether the unit carries the named special rule.
func (u *Unit) HasRule(tag string) bool {
	return util.Contains(u.RuleTags, tag)
}

// IsCaster reports whether the unit can hold spell tokens.
func (u *Unit) IsCaster() bool {
	return u.CasterLevel > 0
}

// ActiveModels returns the number of models with wounds remaining.
func (u *Unit) ActiveModels() int {
	n := 0
	for i := range u.Models {
		if u.Models[i].CurrentHP > 0 {
			n++
		}
	}
	return n
}

// UnitModel is a single model (miniature) within a unit
//
// Part of the models array in :NEW:UNIT: command:
// [modelId, name, maxHp, isHero, isTough, loadout]
type UnitModel struct {
	ID              uint   `json:"id" gorm:"primarykey;autoIncrement;"`
	BattleID        uint   `json:"battleId" gorm:"index:idx_unitmodel_battle_id"`
	UnitSelectionID string `json:"unitSelectionId" gorm:"size:64;index:idx_unitmodel_unit_selection_id"`

	ModelID   string `json:"modelId" gorm:"size:64"` // Roster-assigned model identifier, unique within the unit
	Name      string `json:"name" gorm:"size:127"`
	CurrentHP int    `json:"currentHp"`                      // Wounds remaining, 0 = removed from play
	MaxHP     int    `json:"maxHp" gorm:"default:1"`         // Tough(X) value, 1 for plain models
	IsHero    bool   `json:"isHero" gorm:"default:false"`    // Hero/character model
	IsTough   bool   `json:"isTough" gorm:"default:false"`   // Carries the Tough special rule
	Loadout   string `json:"loadout" gorm:"size:255"`        // Display text for equipped weapons
}

func (*UnitModel) TableName() string {
	return "unit_models"
}

// IsActive reports whether the model is still on the table.
func (m *UnitModel) IsActive() bool {
	return m.CurrentHP > 0
}

////////////////////////
// EVENT MODELS
////////////////////////

// WoundEvent records a single point of damage applied to a model
//
// Client Command: :WOUND:
// Args: [round, selectionId, damage, source]
type WoundEvent struct {
	ID       uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time     time.Time `json:"time" gorm:"type:timestamptz;"`
	BattleID uint      `json:"battleId" gorm:"index:idx_woundevent_battle_id"`
	Battle   Battle    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:BattleID;"`
	Round    uint      `json:"round" gorm:"index:idx_woundevent_round;"`

	UnitSelectionID string `json:"unitSelectionId" gorm:"size:64;index:idx_woundevent_unit_selection_id"`
	ModelID         string `json:"modelId" gorm:"size:64"` // Model that took the wound
	Damage          int    `json:"damage"`                 // Points applied in this event, negative for healing
	RemainingHP     int    `json:"remainingHp"`            // Model wounds left after the event
	Source          string `json:"source" gorm:"size:127"` // Attacking unit or effect description
	HalfStrength    bool   `json:"halfStrength"`           // Unit at or below half strength after the event
	UnitDestroyed   bool   `json:"unitDestroyed"`          // No active models remain after the event
}

func (*WoundEvent) TableName() string {
	return "wound_events"
}

// KillEvent records a unit being removed from play
//
// Emitted by the tracker when the last active model of a unit goes down.
type KillEvent struct {
	ID       uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time     time.Time `json:"time" gorm:"type:timestamptz;"`
	BattleID uint      `json:"battleId" gorm:"index:idx_killevent_battle_id"`
	Battle   Battle    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:BattleID;"`
	Round    uint      `json:"round" gorm:"index:idx_killevent_round;"`

	UnitSelectionID   string         `json:"unitSelectionId" gorm:"size:64;index:idx_killevent_unit_selection_id"`
	KillerSelectionID sql.NullString `json:"killerSelectionId" gorm:"size:64;default:NULL"` // Unit credited with the kill, null if untracked
	EventText         string         `json:"eventText" gorm:"size:80"`                      // Weapon/cause description
}

func (*KillEvent) TableName() string {
	return "kill_events"
}

// SpellTokenEvent records spell token gains and spends
//
// Client Command: :TOKENS:
// Args: [round, selectionId, delta, spellName]
type SpellTokenEvent struct {
	ID       uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time     time.Time `json:"time" gorm:"type:timestamptz;"`
	BattleID uint      `json:"battleId" gorm:"index:idx_spelltokenevent_battle_id"`
	Battle   Battle    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:BattleID;"`
	Round    uint      `json:"round" gorm:"index:idx_spelltokenevent_round;"`

	UnitSelectionID string `json:"unitSelectionId" gorm:"size:64;index:idx_spelltokenevent_unit_selection_id"`
	Delta           int    `json:"delta"`                 // Tokens gained (positive) or spent (negative)
	Tokens          uint8  `json:"tokens"`                // Token count after the event
	Spell           string `json:"spell" gorm:"size:127"` // Spell cast, empty for round upkeep gains
}

func (*SpellTokenEvent) TableName() string {
	return "spell_token_events"
}

// MoveEvent records a unit activation movement
//
// Client Command: :MOVE:
// Args: [round, selectionId, action, fromPos, toPos]
type MoveEvent struct {
	ID       uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time     time.Time `json:"time" gorm:"type:timestamptz;"`
	BattleID uint      `json:"battleId" gorm:"index:idx_moveevent_battle_id"`
	Battle   Battle    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:BattleID;"`
	Round    uint      `json:"round" gorm:"index:idx_moveevent_round;"`

	UnitSelectionID  string     `json:"unitSelectionId" gorm:"size:64;index:idx_moveevent_unit_selection_id"`
	Action           string     `json:"action" gorm:"size:16"` // hold, advance, rush, charge
	AllowedDistance  int        `json:"allowedDistance"`       // Inches permitted for the action
	DeclaredDistance float64    `json:"declaredDistance"`      // Inches actually moved on the table
	FromPosition     geom.Point `json:"fromPos"`               // Table position before the move
	ToPosition       geom.Point `json:"toPos"`                 // Table position after the move
	Illegal          bool       `json:"illegal"`               // Declared distance exceeds the allowance
	OffTable         bool       `json:"offTable"`              // End position lies outside the table bounds
}

func (*MoveEvent) TableName() string {
	return "move_events"
}

// RoundEvent records a round boundary
//
// Client Command: :ROUND:
// Args: [round]
type RoundEvent struct {
	ID       uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time     time.Time `json:"time" gorm:"type:timestamptz;"`
	BattleID uint      `json:"battleId" gorm:"index:idx_roundevent_battle_id"`
	Battle   Battle    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:BattleID;"`
	Round    uint      `json:"round"`
}

func (*RoundEvent) TableName() string {
	return "round_events"
}

// ObjectiveMarker represents an objective placed on the table
//
// Client Command: :NEW:OBJECTIVE:
// Args: [name, position, seizedBy]
type ObjectiveMarker struct {
	ID       uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time     time.Time `json:"time" gorm:"type:timestamptz;"`
	BattleID uint      `json:"battleId" gorm:"index:idx_objectivemarker_battle_id"`
	Battle   Battle    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:BattleID;"`

	Name     string     `json:"name" gorm:"size:128;index:idx_objectivemarker_name"` // Unique objective identifier
	Position geom.Point `json:"position"`                                            // Table position in inches
	SeizedBy string     `json:"seizedBy" gorm:"size:64"`                             // Player holding it, empty if contested/neutral
}

func (*ObjectiveMarker) TableName() string {
	return "objective_markers"
}

// ObjectiveState tracks objective control changes over time
//
// Client Command: :OBJECTIVE:
// Args: [round, name, seizedBy]
type ObjectiveState struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time `json:"time" gorm:"type:timestamptz;"`
	BattleID    uint      `json:"battleId" gorm:"index:idx_objectivestate_battle_id"`
	Battle      Battle    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:BattleID;"`
	ObjectiveID uint      `json:"objectiveId" gorm:"index:idx_objectivestate_objective_id"`
	Objective   ObjectiveMarker `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:ObjectiveID;"`
	Round       uint      `json:"round"`

	SeizedBy string `json:"seizedBy" gorm:"size:64"` // Player holding it, empty if contested/neutral
}

func (*ObjectiveState) TableName() string {
	return "objective_states"
}
