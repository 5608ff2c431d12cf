package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oprtools/armytracker/internal/dashboard"
	"github.com/oprtools/armytracker/internal/database"
	"github.com/oprtools/armytracker/internal/model"
	"github.com/oprtools/armytracker/internal/monitor"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// setupDatabase migrates the schema and configures TimescaleDB
// hypertables when the database supports them.
func setupDatabase() error {
	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()
	dbm := database.NewManager(zlog)
	if err := dbm.Connect(); err != nil {
		return err
	}
	if err := dbm.Setup(); err != nil {
		return err
	}

	if dbm.DB.Dialector.Name() == "postgres" {
		svc := monitor.NewService(monitor.Dependencies{
			DB:            dbm.DB,
			LogManager:    SlogManager,
			BattleContext: BattleContext,
		})
		err := svc.ValidateHypertables(map[string][]string{
			"wound_events":         {"battle_id"},
			"move_events":          {"battle_id"},
			"spell_token_events":   {"battle_id"},
			"tracker_performances": {"battle_id"},
		})
		if err != nil {
			Logger.Warn("Hypertable setup skipped", "error", err)
		}
	}

	Logger.Info("DB setup complete.")
	return nil
}

// migrateBackupsSqlite loads every local SQLite backup database in the
// data directory and inserts its rows into Postgres.
func migrateBackupsSqlite() (err error) {
	sqlitePaths, err := database.GetBackupDBPaths(DataDir)
	if err != nil {
		return fmt.Errorf("error getting backup database paths: %v", err)
	}
	postgresDB, err := connectDB()
	if err != nil {
		return fmt.Errorf("error getting postgres database: %v", err)
	}

	successfulMigrations := make([]string, 0)

	for _, sqlitePath := range sqlitePaths {
		sqliteDB, err := database.GetSqliteDBStandalone(sqlitePath)
		if err != nil {
			return fmt.Errorf("error getting sqlite database: %v", err)
		}

		// transaction for Postgres so we can rollback if errors
		tx := postgresDB.Begin()

		err = migrateTable(sqliteDB, tx, model.TrackerInfo{}, "tracker_infos")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating tracker_infos: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.Campaign{}, "campaigns")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating campaigns: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.Battle{}, "battles")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating battles: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.Unit{}, "units")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating units: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.UnitModel{}, "unit_models")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating unit_models: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.WoundEvent{}, "wound_events")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating wound_events: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.KillEvent{}, "kill_events")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating kill_events: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.SpellTokenEvent{}, "spell_token_events")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating spell_token_events: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.MoveEvent{}, "move_events")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating move_events: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.RoundEvent{}, "round_events")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating round_events: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.ObjectiveMarker{}, "objective_markers")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating objective_markers: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.ObjectiveState{}, "objective_states")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating objective_states: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.TrackerPerformance{}, "tracker_performances")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating tracker_performances: %v", err)
		}

		// With no issues, we commit the transaction
		tx.Commit()

		// remove connections to the databases
		sqlConnection, err := sqliteDB.DB()
		if err != nil {
			Logger.Error("Error getting sqlite connection", "error", err)
			continue
		}
		err = sqlConnection.Close()
		if err != nil {
			Logger.Error("Error closing sqlite connection", "error", err)
		}
		err = os.Rename(sqlitePath, sqlitePath+".migrated")
		if err != nil {
			Logger.Error("Error renaming sqlite file", "error", err)
		}
		successfulMigrations = append(successfulMigrations, sqlitePath)
	}

	Logger.Info("Successfully migrated backups, it's recommended to delete these to avoid future data duplication",
		"count", len(successfulMigrations),
		"paths", successfulMigrations)

	return nil
}

// helper function for sqlite migrations
func migrateTable[M any](
	sqliteDB *gorm.DB,
	postgresDB *gorm.DB,
	tableModel M,
	tableName string,
) (err error) {
	var data = &map[string]any{}
	sqliteDB.Model(&tableModel).
		Assign("id", gorm.Expr("NULL")). // remove the id field from the data
		Find(data)
	Logger.Info("Found records", "count", len(*data), "table", tableName)

	if len(*data) == 0 {
		return nil
	}

	Logger.Info("Inserting records", "count", len(*data), "table", tableName)

	// insert into postgres
	postgresDB.Model(&tableModel).Clauses(
		clause.OnConflict{
			DoNothing: true,
		}).Create(data)
	if postgresDB.Error != nil {
		Logger.Error("Error migrating table", "error", postgresDB.Error, "table", tableName)
		return postgresDB.Error
	}

	return nil
}

// printDashboard builds a campaign snapshot from the organizer's JSON
// files and writes it to stdout.
func printDashboard(dataDir string) error {
	campaign, err := dashboard.LoadCampaign(filepath.Join(dataDir, "campaign.json"))
	if err != nil {
		return err
	}
	missions, err := dashboard.LoadMissions(filepath.Join(dataDir, "missions.json"))
	if err != nil {
		return err
	}

	snapshot := dashboard.BuildSnapshot(campaign, missions)
	out, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling snapshot: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
