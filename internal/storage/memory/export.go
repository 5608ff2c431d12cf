// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
)

// ReplayExport is the root JSON structure of an exported battle replay
type ReplayExport struct {
	TrackerVersion string          `json:"trackerVersion"`
	ClientVersion  string          `json:"clientVersion"`
	BattleName     string          `json:"battleName"`
	MissionName    string          `json:"missionName"`
	CampaignName   string          `json:"campaignName"`
	System         string          `json:"system"`
	PointsLimit    uint            `json:"pointsLimit"`
	TableWidth     float64         `json:"tableWidth"`
	TableHeight    float64         `json:"tableHeight"`
	EndRound       uint            `json:"endRound"`
	Participants   json.RawMessage `json:"participants"`
	Units          []UnitJSON      `json:"units"`
	Events         [][]any         `json:"events"`
	Objectives     [][]any         `json:"objectives"`
}

// UnitJSON represents a unit with its per-unit event series
type UnitJSON struct {
	SelectionID  string   `json:"id"`
	Name         string   `json:"name"`
	ArmyName     string   `json:"army"`
	Player       string   `json:"player"`
	JoinRound    uint     `json:"joinRound"`
	StartingSize int      `json:"startingSize"`
	CasterLevel  uint8    `json:"casterLevel,omitempty"`
	PointsCost   uint     `json:"pointsCost"`
	Rules        []string `json:"rules"`
	Models       [][]any  `json:"models"`
	Wounds       [][]any  `json:"wounds"`
	Tokens       [][]any  `json:"tokens"`
	Moves        [][]any  `json:"moves"`
}

// pointXY converts a table position to a [x, y] pair for JSON output
func pointXY(p geom.Point) []float64 {
	xy, ok := p.XY()
	if !ok {
		return []float64{0, 0}
	}
	return []float64{xy.X, xy.Y}
}

// exportJSON writes the battle data to a JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	// Build filename
	battleName := strings.ReplaceAll(b.battle.BattleName, " ", "_")
	battleName = strings.ReplaceAll(battleName, ":", "_")
	timestamp := b.battle.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", battleName, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", battleName, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := b.writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := b.writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

// GetExportedFilePath returns the path of the last exported replay file
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

func (b *Backend) buildExport() ReplayExport {
	participants := json.RawMessage(b.battle.Participants)
	if len(participants) == 0 {
		participants = json.RawMessage(`[]`)
	}

	export := ReplayExport{
		TrackerVersion: b.battle.TrackerVersion,
		ClientVersion:  b.battle.ClientVersion,
		BattleName:     b.battle.BattleName,
		MissionName:    b.battle.MissionName,
		CampaignName:   b.campaign.Name,
		System:         b.battle.System,
		PointsLimit:    b.battle.PointsLimit,
		TableWidth:     b.battle.TableWidth,
		TableHeight:    b.battle.TableHeight,
		Participants:   participants,
		Units:          make([]UnitJSON, 0),
		Events:         make([][]any, 0),
		Objectives:     make([][]any, 0),
	}

	var maxRound uint = 0

	// Convert units
	for _, record := range b.units {
		unit := UnitJSON{
			SelectionID:  record.Unit.SelectionID,
			Name:         record.Unit.Name,
			ArmyName:     record.Unit.ArmyName,
			Player:       record.Unit.Player,
			JoinRound:    record.Unit.JoinRound,
			StartingSize: record.Unit.StartingSize,
			CasterLevel:  record.Unit.CasterLevel,
			PointsCost:   record.Unit.PointsCost,
			Rules:        record.Unit.RuleTags,
			Models:       make([][]any, 0, len(record.Unit.Models)),
			Wounds:       make([][]any, 0, len(record.WoundEvents)),
			Tokens:       make([][]any, 0, len(record.TokenEvents)),
			Moves:        make([][]any, 0, len(record.MoveEvents)),
		}
		if unit.Rules == nil {
			unit.Rules = []string{}
		}

		for _, m := range record.Unit.Models {
			unit.Models = append(unit.Models, []any{
				m.ModelID,
				m.Name,
				m.MaxHP,
				m.IsHero,
				m.IsTough,
				m.Loadout,
			})
		}

		for _, w := range record.WoundEvents {
			unit.Wounds = append(unit.Wounds, []any{
				w.Round,
				w.ModelID,
				w.Damage,
				w.RemainingHP,
				w.Source,
			})
			if w.Round > maxRound {
				maxRound = w.Round
			}
		}

		for _, tk := range record.TokenEvents {
			unit.Tokens = append(unit.Tokens, []any{
				tk.Round,
				tk.Delta,
				tk.Tokens,
				tk.Spell,
			})
		}

		for _, mv := range record.MoveEvents {
			unit.Moves = append(unit.Moves, []any{
				mv.Round,
				mv.Action,
				mv.AllowedDistance,
				mv.DeclaredDistance,
				pointXY(mv.FromPosition),
				pointXY(mv.ToPosition),
				mv.Illegal,
				mv.OffTable,
			})
			if mv.Round > maxRound {
				maxRound = mv.Round
			}
		}

		export.Units = append(export.Units, unit)
	}

	// Convert round boundaries
	// Format: [round, "round"]
	for _, evt := range b.roundEvents {
		export.Events = append(export.Events, []any{
			evt.Round,
			"round",
		})
		if evt.Round > maxRound {
			maxRound = evt.Round
		}
	}

	// Convert kill events
	// Format: [round, "destroyed", victimId, [killerId, text]]
	for _, evt := range b.killEvents {
		killerID := ""
		if evt.KillerSelectionID.Valid {
			killerID = evt.KillerSelectionID.String
		}

		export.Events = append(export.Events, []any{
			evt.Round,
			"destroyed",
			evt.UnitSelectionID,
			[]any{killerID, evt.EventText},
		})
		if evt.Round > maxRound {
			maxRound = evt.Round
		}
	}

	export.EndRound = maxRound

	// Convert objectives
	// Format: [name, [x, y], initialSeizedBy, [[round, seizedBy], ...]]
	for _, record := range b.objectives {
		states := make([][]any, 0, len(record.States))
		for _, state := range record.States {
			states = append(states, []any{
				state.Round,
				state.SeizedBy,
			})
		}

		export.Objectives = append(export.Objectives, []any{
			record.Marker.Name,
			pointXY(record.Marker.Position),
			record.Marker.SeizedBy,
			states,
		})
	}

	return export
}

func (b *Backend) writeJSON(path string, data ReplayExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func (b *Backend) writeGzipJSON(path string, data ReplayExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
