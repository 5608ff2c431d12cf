package parser

import (
	"fmt"
	"time"

	"github.com/oprtools/armytracker/internal/model"
	"github.com/oprtools/armytracker/internal/table"
	"github.com/oprtools/armytracker/internal/util"
)

// ParseObjectiveCreate parses objective placement data.
// Args: [name, position, seizedBy]
func (p *Parser) ParseObjectiveCreate(data []string) (model.ObjectiveMarker, error) {
	var marker model.ObjectiveMarker

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 3 {
		return marker, fmt.Errorf("objective data has %d args, expected 3", len(data))
	}

	marker.BattleID = p.getBattleID()
	marker.Time = time.Now()

	marker.Name = data[0]
	if marker.Name == "" {
		return marker, fmt.Errorf("objective has empty name")
	}

	position, err := table.ParsePoint(data[1])
	if err != nil {
		return marker, fmt.Errorf("error parsing objective position: %w", err)
	}
	if b := p.battle.Load(); b != nil && b.TableWidth > 0 && b.TableHeight > 0 {
		if !table.WithinTable(position, b.TableWidth, b.TableHeight) {
			return marker, fmt.Errorf("objective %s placed off table at %s", marker.Name, data[1])
		}
	}
	marker.Position = position
	marker.SeizedBy = data[2]

	return marker, nil
}

// ParseObjectiveSeize parses objective control change data.
// Args: [round, name, seizedBy], empty seizedBy means contested/neutral.
func (p *Parser) ParseObjectiveSeize(data []string) (ObjectiveSeizeCommand, error) {
	var cmd ObjectiveSeizeCommand

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 3 {
		return cmd, fmt.Errorf("objective state data has %d args, expected 3", len(data))
	}

	round, err := parseUintFromFloat(data[0])
	if err != nil {
		return cmd, fmt.Errorf("error converting round to uint: %w", err)
	}
	cmd.Round = uint(round)

	cmd.Name = data[1]
	if cmd.Name == "" {
		return cmd, fmt.Errorf("objective state has empty name")
	}
	cmd.SeizedBy = data[2]

	return cmd, nil
}
