package parser

import (
	"fmt"
	"time"

	"github.com/oprtools/armytracker/internal/model"
	"github.com/oprtools/armytracker/internal/rules"
	"github.com/oprtools/armytracker/internal/table"
	"github.com/oprtools/armytracker/internal/util"
)

// ParseWound parses wound data.
// Args: [round, selectionId, damage, source]
func (p *Parser) ParseWound(data []string) (WoundCommand, error) {
	var cmd WoundCommand

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 4 {
		return cmd, fmt.Errorf("wound data has %d args, expected 4", len(data))
	}

	round, err := parseUintFromFloat(data[0])
	if err != nil {
		return cmd, fmt.Errorf("error converting round to uint: %w", err)
	}
	cmd.Round = uint(round)

	cmd.SelectionID = data[1]
	if cmd.SelectionID == "" {
		return cmd, fmt.Errorf("wound has empty selectionId")
	}

	damage, err := parseIntFromFloat(data[2])
	if err != nil {
		return cmd, fmt.Errorf("error converting damage to int: %w", err)
	}
	if damage < 1 {
		return cmd, fmt.Errorf("wound damage must be positive, got %d", damage)
	}
	cmd.Damage = int(damage)
	cmd.Source = data[3]

	return cmd, nil
}

// ParseHeal parses heal data. Healing is recorded as negative damage.
// Args: [round, selectionId, amount, source]
func (p *Parser) ParseHeal(data []string) (WoundCommand, error) {
	cmd, err := p.ParseWound(data)
	if err != nil {
		return cmd, err
	}
	cmd.Damage = -cmd.Damage
	return cmd, nil
}

// ParseTokens parses spell token data.
// Args: [round, selectionId, delta, spellName]
func (p *Parser) ParseTokens(data []string) (TokenCommand, error) {
	var cmd TokenCommand

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 4 {
		return cmd, fmt.Errorf("token data has %d args, expected 4", len(data))
	}

	round, err := parseUintFromFloat(data[0])
	if err != nil {
		return cmd, fmt.Errorf("error converting round to uint: %w", err)
	}
	cmd.Round = uint(round)

	cmd.SelectionID = data[1]
	if cmd.SelectionID == "" {
		return cmd, fmt.Errorf("token event has empty selectionId")
	}

	delta, err := parseIntFromFloat(data[2])
	if err != nil {
		return cmd, fmt.Errorf("error converting delta to int: %w", err)
	}
	if delta == 0 {
		return cmd, fmt.Errorf("token delta must be nonzero")
	}
	// No single event can move the balance by more than the cap.
	if delta > int64(rules.MaxSpellTokens) || delta < -int64(rules.MaxSpellTokens) {
		return cmd, fmt.Errorf("token delta %d exceeds the token cap", delta)
	}
	cmd.Delta = int(delta)
	cmd.Spell = data[3]

	return cmd, nil
}

// ParseMove parses movement data.
// Args: [round, selectionId, action, fromPos, toPos]
func (p *Parser) ParseMove(data []string) (MoveCommand, error) {
	var cmd MoveCommand

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 5 {
		return cmd, fmt.Errorf("move data has %d args, expected 5", len(data))
	}

	round, err := parseUintFromFloat(data[0])
	if err != nil {
		return cmd, fmt.Errorf("error converting round to uint: %w", err)
	}
	cmd.Round = uint(round)

	cmd.SelectionID = data[1]
	if cmd.SelectionID == "" {
		return cmd, fmt.Errorf("move has empty selectionId")
	}

	action, ok := rules.ParseAction(data[2])
	if !ok {
		return cmd, fmt.Errorf("unknown move action %q", data[2])
	}
	cmd.Action = action

	cmd.From, err = table.ParsePoint(data[3])
	if err != nil {
		return cmd, fmt.Errorf("error parsing from position: %w", err)
	}
	cmd.To, err = table.ParsePoint(data[4])
	if err != nil {
		return cmd, fmt.Errorf("error parsing to position: %w", err)
	}

	return cmd, nil
}

// ParseRound parses a round boundary.
// Args: [round]
func (p *Parser) ParseRound(data []string) (model.RoundEvent, error) {
	var event model.RoundEvent

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 1 {
		return event, fmt.Errorf("round data is empty")
	}

	round, err := parseUintFromFloat(data[0])
	if err != nil {
		return event, fmt.Errorf("error converting round to uint: %w", err)
	}
	if round == 0 {
		return event, fmt.Errorf("round number must be positive")
	}

	event.BattleID = p.getBattleID()
	event.Time = time.Now()
	event.Round = uint(round)

	return event, nil
}
