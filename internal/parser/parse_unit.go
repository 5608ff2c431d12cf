package parser

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/oprtools/armytracker/internal/model"
	"github.com/oprtools/armytracker/internal/util"
)

// ParseUnit parses unit registration data and returns a Unit model with
// its UnitModel rows. All models start at full wounds.
func (p *Parser) ParseUnit(data []string) (model.Unit, error) {
	var unit model.Unit

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 10 {
		return unit, fmt.Errorf("unit data has %d args, expected 10", len(data))
	}

	// get round
	round, err := parseUintFromFloat(data[0])
	if err != nil {
		return unit, fmt.Errorf("error converting round to uint: %w", err)
	}

	unit.BattleID = p.getBattleID()
	unit.JoinRound = uint(round)
	unit.JoinTime = time.Now()

	unit.SelectionID = data[1]
	if unit.SelectionID == "" {
		return unit, fmt.Errorf("unit registration has empty selectionId")
	}
	unit.Name = data[2]
	unit.ArmyName = data[3]
	unit.Player = data[4]

	casterLevel, err := parseUintFromFloat(data[5])
	if err != nil {
		return unit, fmt.Errorf("error converting casterLevel to uint: %w", err)
	}
	unit.CasterLevel = uint8(casterLevel)

	startingSize, err := parseIntFromFloat(data[6])
	if err != nil {
		return unit, fmt.Errorf("error converting startingSize to int: %w", err)
	}
	unit.StartingSize = int(startingSize)

	// special rule tags come in as a JSON string array
	if err = json.Unmarshal([]byte(data[7]), &unit.RuleTags); err != nil {
		return unit, fmt.Errorf("error unmarshalling rules: %w", err)
	}
	unit.Rules = datatypes.JSON(data[7])

	unit.Models, err = p.parseUnitModels(unit.BattleID, unit.SelectionID, data[8])
	if err != nil {
		return unit, err
	}

	// joinedHeroId, empty when no hero is attached at deployment
	if data[9] != "" {
		unit.JoinedHeroSelectionID = sql.NullString{String: data[9], Valid: true}
	}

	return unit, nil
}

// parseUnitModels parses the models JSON array of a unit registration.
// Each row is [modelId, name, maxHp, isHero, isTough, loadout].
func (p *Parser) parseUnitModels(battleID uint, selectionID string, raw string) ([]model.UnitModel, error) {
	var rows [][]any
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("error unmarshalling models: %w", err)
	}

	models := make([]model.UnitModel, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("model row %d has %d elements, expected 6", i, len(row))
		}

		var m model.UnitModel
		m.BattleID = battleID
		m.UnitSelectionID = selectionID

		var ok bool
		if m.ModelID, ok = row[0].(string); !ok || m.ModelID == "" {
			return nil, fmt.Errorf("model row %d has invalid modelId", i)
		}
		if m.Name, ok = row[1].(string); !ok {
			return nil, fmt.Errorf("model row %d has invalid name", i)
		}

		maxHP, ok := row[2].(float64)
		if !ok || maxHP < 1 {
			return nil, fmt.Errorf("model row %d has invalid maxHp", i)
		}
		m.MaxHP = int(maxHP)
		m.CurrentHP = m.MaxHP

		if m.IsHero, ok = row[3].(bool); !ok {
			return nil, fmt.Errorf("model row %d has invalid isHero", i)
		}
		if m.IsTough, ok = row[4].(bool); !ok {
			return nil, fmt.Errorf("model row %d has invalid isTough", i)
		}

		if loadout, ok := row[5].(string); ok {
			melee, ranged, special := util.ParseLoadoutArray(loadout)
			m.Loadout = util.FormatLoadoutText(melee, ranged, special)
		}

		models = append(models, m)
	}

	return models, nil
}

// ParseJoinHero parses a hero attachment command.
// Args: [selectionId, heroSelectionId], empty heroSelectionId detaches.
func (p *Parser) ParseJoinHero(data []string) (JoinHeroCommand, error) {
	var cmd JoinHeroCommand

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 2 {
		return cmd, fmt.Errorf("join hero data has %d args, expected 2", len(data))
	}

	cmd.SelectionID = data[0]
	if cmd.SelectionID == "" {
		return cmd, fmt.Errorf("join hero has empty selectionId")
	}
	cmd.HeroSelectionID = data[1]

	return cmd, nil
}
