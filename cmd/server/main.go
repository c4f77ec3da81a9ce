// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "vr-datastreamer/docs"
	"vr-datastreamer/internal/config"
	"vr-datastreamer/internal/database"
	"vr-datastreamer/internal/discovery"
	serialsrc "vr-datastreamer/internal/discovery/serial"
	"vr-datastreamer/internal/discovery/udp"
	"vr-datastreamer/internal/events"
	"vr-datastreamer/internal/model"
	"vr-datastreamer/internal/protocol"
	"vr-datastreamer/internal/recording"
	"vr-datastreamer/internal/repository"
	"vr-datastreamer/internal/routes"
	"vr-datastreamer/internal/service"
	"vr-datastreamer/internal/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	router   *routes.Router
	database *database.DB
	bus      *events.Bus

	// Services
	motorService     *service.MotorService
	headsetService   *service.HeadsetService
	recordingService *service.RecordingService
	discoveryService *service.DiscoveryService
	statusService    *service.StatusService

	// Repositories
	recordingRepo repository.RecordingRepository
}

// @title VR Datastreamer API
// @version 1.0.0
// @description Control surface for the vibration motor controller, the VR headset pose stream and the recording catalog

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8086
// @BasePath /
func main() {
	configPath := flag.String("config", "", "path to a config file (default: search ./config.yaml)")
	flag.Parse()

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication(configPath string) (*Application, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "vr-datastreamer")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeCatalog(); err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	app.initializeServices()
	app.initializeServer()

	return app, nil
}

// initializeCatalog opens the recording catalog and runs migrations. A
// disabled catalog falls back to an in-memory repository.
func (app *Application) initializeCatalog() error {
	if !app.config.Catalog.Enabled {
		app.recordingRepo = repository.NewMemoryRecordingRepository()
		app.logger.Info("Recording catalog disabled, using in-memory catalog")
		return nil
	}

	// The sqlite file usually lives next to the recordings.
	if err := os.MkdirAll(app.config.Recording.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	db, err := database.NewConnection(&app.config.Catalog, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	if app.config.Catalog.MigrateOnStart {
		migrator := database.NewMigrator(db, app.logger)
		if err := migrator.Up(); err != nil {
			db.Close()
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	app.recordingRepo = repository.NewRecordingRepository(db, app.logger)

	app.logger.Info("Recording catalog initialized", zap.String("driver", db.Driver()))
	return nil
}

// initializeServices creates service instances
func (app *Application) initializeServices() {
	app.bus = events.NewBus(app.logger)

	locator := discovery.NewLocator(serialsrc.OpenProbe, app.logger)
	locator.RegisterSource(serialsrc.NewRangeSourceFromConfig(&app.config.Serial, app.logger))
	if app.config.Serial.Enumerate {
		locator.RegisterSource(serialsrc.NewEnumeratorSource(serialsrc.NewBoardDatabase(), app.logger))
	}

	app.motorService = service.NewMotorService(
		locator,
		nil,
		protocol.SerialSettingsFromConfig(&app.config.Serial),
		app.bus,
		app.logger,
	)

	queue := recording.NewQueue()
	app.headsetService = service.NewHeadsetService(
		udp.SettingsFromConfig(&app.config.Network),
		protocol.StreamSettingsFromConfig(&app.config.Network),
		queue,
		app.bus,
		app.logger,
	)

	sink := recording.NewSink(queue, recording.Options{
		OutputDir: app.config.Recording.OutputDir,
		MaxSuffix: app.config.Recording.MaxSuffix,
	}, app.logger)

	app.recordingService = service.NewRecordingService(
		sink,
		app.recordingRepo,
		app.motorService,
		app.headsetService,
		&app.config.Recording,
		app.bus,
		app.logger,
	)

	app.discoveryService = service.NewDiscoveryService(
		app.motorService,
		app.headsetService,
		&app.config.Discovery,
		app.bus,
		app.logger,
	)

	app.statusService = service.NewStatusService(
		app.motorService,
		app.headsetService,
		app.recordingService,
		app.discoveryService,
	)

	app.logger.Info("Services initialized successfully")
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	app.router = routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		app.bus,
		routes.Services{
			Motor:     app.motorService,
			Headset:   app.headsetService,
			Recording: app.recordingService,
			Discovery: app.discoveryService,
			Status:    app.statusService,
		},
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      app.router.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized", zap.String("address", app.config.GetServerAddr()))
}

// startBackgroundServices starts the event bus, the recording drain loop and
// the automatic discovery pass
func (app *Application) startBackgroundServices() {
	go app.bus.Start()
	app.recordingService.RunDrainLoop()

	if app.config.Discovery.AutoOnStart {
		if _, err := app.discoveryService.RunAsync(model.TriggerAuto); err != nil {
			app.logger.Warn("Automatic discovery not started", zap.Error(err))
		}
	}

	app.logger.Info("Background services started")
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown(serverErr <-chan error) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		app.shutdown("shutdown signal received")
	case err := <-serverErr:
		app.logger.Error("HTTP server failed", zap.Error(err))
		app.shutdown("http server failed")
	}
}

// shutdown stops components in dependency order: HTTP first so no new work
// arrives, then the links, the recording and finally the bus and catalog.
func (app *Application) shutdown(reason string) {
	serviceLogger := utils.NewServiceLogger(app.logger, "vr-datastreamer")
	serviceLogger.LogServiceStop(reason)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app.router.Close()
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	app.discoveryService.Close()

	if err := app.recordingService.Shutdown(ctx); err != nil {
		app.logger.Error("Recording shutdown error", zap.Error(err))
	}

	if err := app.headsetService.Close(); err != nil {
		app.logger.Warn("Headset close error", zap.Error(err))
	}
	if err := app.motorService.Close(); err != nil {
		app.logger.Warn("Motor close error", zap.Error(err))
	}

	app.bus.Stop()

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// Start serves HTTP until a shutdown signal arrives
func (app *Application) Start() error {
	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))

		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	app.startBackgroundServices()
	app.waitForShutdown(serverErr)

	return nil
}
