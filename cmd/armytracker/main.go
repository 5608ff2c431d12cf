package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oprtools/armytracker/internal/battle"
	"github.com/oprtools/armytracker/internal/cache"
	"github.com/oprtools/armytracker/internal/config"
	"github.com/oprtools/armytracker/internal/dispatcher"
	"github.com/oprtools/armytracker/internal/influx"
	"github.com/oprtools/armytracker/internal/logging"
	"github.com/oprtools/armytracker/internal/monitor"
	intOtel "github.com/oprtools/armytracker/internal/otel"
	"github.com/oprtools/armytracker/internal/parser"
	"github.com/oprtools/armytracker/internal/storage"
	"github.com/oprtools/armytracker/internal/tracker"
	"github.com/oprtools/armytracker/internal/util"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gorm.io/gorm"
)

// Version and BuildDate can be set at build time via ldflags
var (
	Version   string = "1.0.0"
	BuildDate string = "unknown"

	AppName string = "armytracker"
)

// file paths
var (
	LogsDir     string
	DataDir     string
	LogFilePath string
	LogFile     *os.File
)

// global services
var (
	SessionStartTime time.Time = time.Now()

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// RosterCache holds every unit registered for the current battle
	RosterCache *cache.RosterCache = cache.NewRosterCache()

	// ObjectiveCache maps objective names to their database IDs
	ObjectiveCache *cache.ObjectiveCache = cache.NewObjectiveCache()

	// BattleContext holds the battle and campaign in progress
	BattleContext *battle.Context = battle.NewContext()

	parserService   *parser.Parser
	eventDispatcher *dispatcher.Dispatcher
	trackerManager  *tracker.Manager
	monitorService  *monitor.Service
	influxManager   *influx.Manager

	// Storage backend recording battle data
	storageBackend storage.Backend

	// monitorDB is set when the backend writes through GORM, so the
	// monitor can record performance rows in the same database.
	monitorDB *gorm.DB
)

// setup prepares config, logging and the dispatcher. Must run before
// any subcommand.
func setup() error {
	// bootstrap logging to stderr until the log file is open
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(os.Stderr, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load("."); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	LogsDir = viper.GetString("logsDir")
	DataDir = viper.GetString("dataDir")
	for _, dir := range []string{LogsDir, DataDir} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	var err error
	LogFilePath = logging.LogFilePath(LogsDir, AppName, SessionStartTime)
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to create/open log file %s: %w", LogFilePath, err)
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    LogFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	// Optional GELF forwarding alongside file output
	var extraHandlers []slog.Handler
	graylogCfg := config.GetGraylogConfig()
	if graylogCfg.Enabled {
		gelfHandler, err := logging.NewGelfHandler(graylogCfg.Address, viper.GetString("logLevel"))
		if err != nil {
			Logger.Error("Failed to set up GELF handler", "error", err, "address", graylogCfg.Address)
		} else {
			extraHandlers = append(extraHandlers, gelfHandler)
		}
	}

	// Re-setup logging with file output and optional OTel/GELF
	SlogManager.Setup(LogFile, viper.GetString("logLevel"), otelLogProvider, extraHandlers...)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)

	// Dynamic state callbacks stamped onto every record
	SlogManager.GetBattleName = func() string {
		return BattleContext.GetBattle().BattleName
	}
	SlogManager.GetBattleID = func() uint {
		return BattleContext.GetBattle().ID
	}

	parserService = parser.NewParser(Logger, Version, "unknown")

	dispatcherLogger := logging.NewDispatcherLogger(Logger)
	eventDispatcher, err = dispatcher.New(dispatcherLogger)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	registerLifecycleHandlers(eventDispatcher)
	Logger.Info("Dispatcher initialized with lifecycle handlers")

	return nil
}

// startServices brings up the storage backend, tracker handlers and the
// status monitor. Only serve and demo need the full stack.
func startServices() error {
	if viper.GetBool("influx.enabled") {
		zlog := zerolog.New(LogFile).With().Timestamp().Logger()
		backupPath := filepath.Join(DataDir, fmt.Sprintf("influx_backup_%s.gz", SessionStartTime.Format("20060102_150405")))
		influxManager = influx.NewManager(zlog, backupPath)
		if err := influxManager.Connect(); err != nil {
			Logger.Warn("InfluxDB unavailable, metric events will be dropped", "error", err)
			influxManager = nil
		}
	}

	storageCfg := config.GetStorageConfig()
	backend, err := storage.NewBackend(storageCfg, storage.Dependencies{
		ObjectiveCache: ObjectiveCache,
		LogManager:     SlogManager,
	})
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	storageBackend = backend
	if err := storageBackend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)

	if p, ok := storageBackend.(interface{ DB() *gorm.DB }); ok {
		monitorDB = p.DB()
	}

	trackerManager = tracker.NewManager(tracker.Dependencies{
		RosterCache:    RosterCache,
		ObjectiveCache: ObjectiveCache,
		LogManager:     SlogManager,
		Parser:         parserService,
		BattleContext:  BattleContext,
		Influx:         influxManager,
	}, storageBackend)

	Logger.Debug("Registering tracker handlers with dispatcher")
	trackerManager.RegisterHandlers(eventDispatcher)
	Logger.Info("Tracker handlers registered with dispatcher")

	monitorService = monitor.NewService(monitor.Dependencies{
		DB:                monitorDB,
		LogManager:        SlogManager,
		BattleContext:     BattleContext,
		DataDir:           DataDir,
		BufferLengths:     eventDispatcher.QueueLengths,
		WriteQueues:       trackerManager.GetWriteQueueLengths,
		LastWriteDuration: trackerManager.GetLastDBWriteDuration,
		IsDatabaseValid:   func() bool { return monitorDB != nil },
	})

	if !monitorService.IsRunning() {
		Logger.Debug("Status monitor not running, starting it")
		if err := monitorService.Start(); err != nil {
			return fmt.Errorf("failed to start status monitor: %w", err)
		}
	}

	return nil
}

// registerLifecycleHandlers registers system/lifecycle command handlers
// with the dispatcher.
func registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register(":INIT:", func(e dispatcher.Event) (any, error) {
		Logger.Info("Table client connected")
		return []string{":READY:", Version}, nil
	})

	d.Register(":VERSION:", func(e dispatcher.Event) (any, error) {
		return []string{Version, BuildDate}, nil
	})

	d.Register(":CLIENT:VERSION:", func(e dispatcher.Event) (any, error) {
		if len(e.Args) > 0 {
			clientVersion := util.FixEscapeQuotes(util.TrimQuotes(e.Args[0]))
			parserService.SetClientVersion(clientVersion)
			Logger.Info("Client version", "version", clientVersion)
		}
		return "ok", nil
	})

	d.Register(":STATUS:", func(e dispatcher.Event) (any, error) {
		if monitorService == nil {
			return nil, fmt.Errorf("status monitor not running")
		}
		output, _ := monitorService.GetProgramStatus(true, true, true)
		return output, nil
	})

	d.Register(":SAVE:", func(e dispatcher.Event) (any, error) {
		Logger.Info("Received :SAVE: command, ending battle recording")
		if storageBackend != nil {
			if err := storageBackend.EndBattle(); err != nil {
				Logger.Error("Failed to end battle in storage backend", "error", err)
				return nil, err
			}
			Logger.Info("Battle recording saved to storage backend")
		}
		// Flush OTel data if provider is available
		if OTelProvider != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := OTelProvider.Flush(ctx); err != nil {
				Logger.Warn("Failed to flush OTel data", "error", err)
			}
		}
		return "ok", nil
	})
}

func main() {
	if err := setup(); err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		os.Exit(1)
	}

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Println("Usage: armytracker <serve|demo|export|dashboard|setupdb|migratebackups>")
		return
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "serve":
		if err = startServices(); err != nil {
			break
		}
		err = runServer(viper.GetString("server.listenAddr"))

	case "demo":
		if err = startServices(); err != nil {
			break
		}
		Logger.Info("Populating demo data...")
		demoStart := time.Now()
		populateDemoData()
		Logger.Info("Demo data populated.", "duration", time.Since(demoStart))

	case "export":
		battleIDs := args[1:]
		if len(battleIDs) == 0 {
			fmt.Println("No battle IDs provided.")
			return
		}
		err = exportReplay(battleIDs)

	case "dashboard":
		err = printDashboard(DataDir)

	case "setupdb":
		err = setupDatabase()

	case "migratebackups":
		err = migrateBackupsSqlite()

	default:
		fmt.Printf("Unknown subcommand %q.\n", args[0])
	}

	if err != nil {
		Logger.Error("Command failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}
