// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/oprtools/armytracker/internal/cache"
	"github.com/oprtools/armytracker/internal/config"
	"github.com/oprtools/armytracker/internal/database"
	"github.com/oprtools/armytracker/internal/logging"
	gormstorage "github.com/oprtools/armytracker/internal/storage/gorm"
	"github.com/oprtools/armytracker/internal/storage/memory"
	sqlitestorage "github.com/oprtools/armytracker/internal/storage/sqlite"
	"github.com/oprtools/armytracker/internal/storage/websocket"
)

// Compile-time interface checks for all backends
var (
	_ Backend    = (*memory.Backend)(nil)
	_ Backend    = (*gormstorage.Backend)(nil)
	_ Backend    = (*sqlitestorage.Backend)(nil)
	_ Backend    = (*websocket.Backend)(nil)
	_ Exportable = (*memory.Backend)(nil)
)

// Dependencies holds shared services passed to backends that need them.
type Dependencies struct {
	ObjectiveCache *cache.ObjectiveCache
	LogManager     *logging.SlogManager
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		db, err := database.GetPostgresDBStandalone()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return gormstorage.New(gormstorage.Dependencies{
			DB:             db,
			ObjectiveCache: deps.ObjectiveCache,
			LogManager:     deps.LogManager,
		}), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     cfg.SQLite.DumpPath,
		}, deps.ObjectiveCache, deps.LogManager)
	case "memory":
		return memory.New(cfg.Memory), nil
	case "websocket":
		return websocket.New(websocket.Config{
			URL:    cfg.Websocket.URL,
			Secret: cfg.Websocket.Secret,
		}), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
