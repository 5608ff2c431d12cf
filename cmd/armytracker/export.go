package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oprtools/armytracker/internal/database"
	"github.com/oprtools/armytracker/internal/model"
	"github.com/oprtools/armytracker/internal/storage/memory"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/gorm"
)

// connectDB opens a Postgres connection for direct-query subcommands.
func connectDB() (*gorm.DB, error) {
	db, err := database.GetPostgresDBStandalone()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	return db, nil
}

func pointXY(p geom.Point) []float64 {
	xy, ok := p.XY()
	if !ok {
		return []float64{0, 0}
	}
	return []float64{xy.X, xy.Y}
}

// exportReplay rebuilds replay JSON files from database rows, in the
// same shape the memory backend writes on EndBattle.
func exportReplay(battleIDs []string) (err error) {
	db, err := connectDB()
	if err != nil {
		return err
	}

	fmt.Println("Exporting replay JSON for battle IDs: ", battleIDs)

	for _, battleID := range battleIDs {
		battleIDInt, err := strconv.Atoi(battleID)
		if err != nil {
			return err
		}

		txStart := time.Now()
		var battleRow model.Battle
		err = db.Model(&model.Battle{}).Where("id = ?", battleIDInt).First(&battleRow).Error
		if err != nil {
			return fmt.Errorf("error getting battle: %w", err)
		}

		campaign := model.Campaign{}
		err = db.Model(&model.Campaign{}).Where("id = ?", battleRow.CampaignID).First(&campaign).Error
		if err != nil {
			return fmt.Errorf("error getting campaign: %w", err)
		}

		participants := json.RawMessage(battleRow.Participants)
		if len(participants) == 0 {
			participants = json.RawMessage(`[]`)
		}

		export := memory.ReplayExport{
			TrackerVersion: battleRow.TrackerVersion,
			ClientVersion:  battleRow.ClientVersion,
			BattleName:     battleRow.BattleName,
			MissionName:    battleRow.MissionName,
			CampaignName:   campaign.Name,
			System:         battleRow.System,
			PointsLimit:    battleRow.PointsLimit,
			TableWidth:     battleRow.TableWidth,
			TableHeight:    battleRow.TableHeight,
			Participants:   participants,
			Units:          make([]memory.UnitJSON, 0),
			Events:         make([][]any, 0),
			Objectives:     make([][]any, 0),
		}

		// Bulk-fetch units and all per-unit event series for this battle
		units := []model.Unit{}
		unitTxStart := time.Now()
		err = db.Model(&model.Unit{}).Where("battle_id = ?", battleIDInt).Preload("Models").Find(&units).Error
		if err != nil {
			return fmt.Errorf("error getting units: %w", err)
		}
		fmt.Println("Got units in ", time.Since(unitTxStart))

		woundsByUnit := map[string][]model.WoundEvent{}
		allWounds := []model.WoundEvent{}
		err = db.Model(&model.WoundEvent{}).
			Where("battle_id = ?", battleIDInt).
			Order("id ASC").
			Find(&allWounds).Error
		if err != nil {
			return fmt.Errorf("error getting wound events: %w", err)
		}
		for _, e := range allWounds {
			woundsByUnit[e.UnitSelectionID] = append(woundsByUnit[e.UnitSelectionID], e)
		}

		tokensByUnit := map[string][]model.SpellTokenEvent{}
		allTokens := []model.SpellTokenEvent{}
		err = db.Model(&model.SpellTokenEvent{}).
			Where("battle_id = ?", battleIDInt).
			Order("id ASC").
			Find(&allTokens).Error
		if err != nil {
			return fmt.Errorf("error getting spell token events: %w", err)
		}
		for _, e := range allTokens {
			tokensByUnit[e.UnitSelectionID] = append(tokensByUnit[e.UnitSelectionID], e)
		}

		movesByUnit := map[string][]model.MoveEvent{}
		allMoves := []model.MoveEvent{}
		err = db.Model(&model.MoveEvent{}).
			Where("battle_id = ?", battleIDInt).
			Order("id ASC").
			Find(&allMoves).Error
		if err != nil {
			return fmt.Errorf("error getting move events: %w", err)
		}
		for _, e := range allMoves {
			movesByUnit[e.UnitSelectionID] = append(movesByUnit[e.UnitSelectionID], e)
		}

		var maxRound uint
		for _, u := range units {
			ruleTags := []string{}
			if len(u.Rules) > 0 {
				if err := json.Unmarshal(u.Rules, &ruleTags); err != nil {
					ruleTags = []string{}
				}
			}

			unit := memory.UnitJSON{
				SelectionID:  u.SelectionID,
				Name:         u.Name,
				ArmyName:     u.ArmyName,
				Player:       u.Player,
				JoinRound:    u.JoinRound,
				StartingSize: u.StartingSize,
				CasterLevel:  u.CasterLevel,
				PointsCost:   u.PointsCost,
				Rules:        ruleTags,
				Models:       make([][]any, 0, len(u.Models)),
				Wounds:       make([][]any, 0, len(woundsByUnit[u.SelectionID])),
				Tokens:       make([][]any, 0, len(tokensByUnit[u.SelectionID])),
				Moves:        make([][]any, 0, len(movesByUnit[u.SelectionID])),
			}

			for _, m := range u.Models {
				unit.Models = append(unit.Models, []any{
					m.ModelID,
					m.Name,
					m.MaxHP,
					m.IsHero,
					m.IsTough,
					m.Loadout,
				})
			}

			for _, w := range woundsByUnit[u.SelectionID] {
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

			for _, tk := range tokensByUnit[u.SelectionID] {
				unit.Tokens = append(unit.Tokens, []any{
					tk.Round,
					tk.Delta,
					tk.Tokens,
					tk.Spell,
				})
			}

			for _, mv := range movesByUnit[u.SelectionID] {
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

		roundEvents := []model.RoundEvent{}
		err = db.Model(&model.RoundEvent{}).
			Where("battle_id = ?", battleIDInt).
			Order("round ASC").
			Find(&roundEvents).Error
		if err != nil {
			return fmt.Errorf("error getting round events: %w", err)
		}
		for _, e := range roundEvents {
			export.Events = append(export.Events, []any{e.Round, "round"})
			if e.Round > maxRound {
				maxRound = e.Round
			}
		}

		killEvents := []model.KillEvent{}
		err = db.Model(&model.KillEvent{}).
			Where("battle_id = ?", battleIDInt).
			Order("id ASC").
			Find(&killEvents).Error
		if err != nil {
			return fmt.Errorf("error getting kill events: %w", err)
		}
		for _, e := range killEvents {
			killerID := ""
			if e.KillerSelectionID.Valid {
				killerID = e.KillerSelectionID.String
			}
			export.Events = append(export.Events, []any{
				e.Round,
				"destroyed",
				e.UnitSelectionID,
				[]any{killerID, e.EventText},
			})
			if e.Round > maxRound {
				maxRound = e.Round
			}
		}

		export.EndRound = maxRound

		markers := []model.ObjectiveMarker{}
		err = db.Model(&model.ObjectiveMarker{}).Where("battle_id = ?", battleIDInt).Find(&markers).Error
		if err != nil {
			return fmt.Errorf("error getting objective markers: %w", err)
		}
		for _, marker := range markers {
			states := []model.ObjectiveState{}
			err = db.Model(&model.ObjectiveState{}).
				Where("battle_id = ? AND objective_id = ?", battleIDInt, marker.ID).
				Order("round ASC").
				Find(&states).Error
			if err != nil {
				return fmt.Errorf("error getting objective states: %w", err)
			}

			stateRows := make([][]any, 0, len(states))
			for _, state := range states {
				stateRows = append(stateRows, []any{state.Round, state.SeizedBy})
			}
			export.Objectives = append(export.Objectives, []any{
				marker.Name,
				pointXY(marker.Position),
				marker.SeizedBy,
				stateRows,
			})
		}

		fmt.Println("Got battle data in ", time.Since(txStart))

		replayJSON, err := json.Marshal(export)
		if err != nil {
			return fmt.Errorf("error marshalling replay data: %w", err)
		}

		fileName := fmt.Sprintf("%s_%s.json.gz", battleRow.BattleName, battleRow.StartTime.Format("20060102_150405"))
		fileName = strings.ReplaceAll(fileName, " ", "_")
		fileName = strings.ReplaceAll(fileName, ":", "_")
		f, err := os.Create(fileName)
		if err != nil {
			return fmt.Errorf("error creating file: %w", err)
		}
		defer func() { _ = f.Close() }()

		gzWriter := gzip.NewWriter(f)
		defer func() { _ = gzWriter.Close() }()
		_, err = gzWriter.Write(replayJSON)
		if err != nil {
			return fmt.Errorf("error writing to gzip: %w", err)
		}

		fmt.Println("Wrote replay data to ", fileName)
	}

	return nil
}
