// Package app provides the application initialization and lifecycle management
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/shepherd/internal/config"
	"github.com/tildaslashalef/shepherd/internal/database"
	"github.com/tildaslashalef/shepherd/internal/detector"
	"github.com/tildaslashalef/shepherd/internal/github"
	"github.com/tildaslashalef/shepherd/internal/gitops"
	"github.com/tildaslashalef/shepherd/internal/history"
	"github.com/tildaslashalef/shepherd/internal/loggy"
	"github.com/tildaslashalef/shepherd/internal/netmon"
	"github.com/tildaslashalef/shepherd/internal/notify"
	"github.com/tildaslashalef/shepherd/internal/project"
	"github.com/tildaslashalef/shepherd/internal/scanner"
	"github.com/tildaslashalef/shepherd/internal/scheduler"
	"github.com/tildaslashalef/shepherd/internal/status"
	"github.com/tildaslashalef/shepherd/internal/watcher"
	"github.com/tildaslashalef/shepherd/internal/workflow"
)

// ErrNotInitialized is returned when a command needs GitHub credentials but
// none are configured yet.
var ErrNotInitialized = errors.New("no GitHub account configured, run 'shepherd init' first")

// App represents the application instance with its dependencies
type App struct {
	Config        *config.Config
	Settings      *config.Settings
	SettingsStore *config.SettingsStore
	Registry      *project.Registry
	Git           *gitops.Service
	GitHub        *github.Client
	Network       *netmon.Monitor
	Notifier      *notify.Service
	Scanner       *scanner.Service
	Detector      *detector.Service
	Scheduler     *scheduler.Scheduler
	Status        *status.Aggregator
	History       history.Repository

	agentWG sync.WaitGroup
}

// New initializes a new application instance with all its dependencies
func New() (*App, error) {
	cfg, err := initConfig()
	if err != nil {
		return nil, err
	}

	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	loggy.Info("Application initializing",
		"version", os.Getenv("VERSION"),
		"log_level", cfg.Logging.Level,
	)

	historyRepo := initHistory(cfg)

	return initServices(cfg, historyRepo)
}

// initConfig loads and sets up the application configuration
func initConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv("")
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	config.Set(cfg)
	return cfg, nil
}

// initLogger initializes the logging system
func initLogger(cfg *config.Config) error {
	err := loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	return nil
}

// initHistory opens the sync-history database. A broken database disables
// history but never blocks syncing.
func initHistory(cfg *config.Config) history.Repository {
	if err := database.InitDB(cfg); err != nil {
		loggy.Warn("Sync history unavailable", "error", err)
		return nil
	}
	if err := database.RunMigrations(); err != nil {
		loggy.Warn("Sync history migration failed", "error", err)
		return nil
	}

	db, err := database.DB()
	if err != nil {
		return nil
	}
	return history.NewSQLRepository(db, loggy.GetGlobalLogger())
}

// initServices initializes all application services
func initServices(cfg *config.Config, historyRepo history.Repository) (*App, error) {
	logger := loggy.GetGlobalLogger()

	settingsStore := config.NewSettingsStore(cfg.SettingsPath(), logger)
	settings, err := settingsStore.Load()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	registry := project.NewRegistry()
	notifier := notify.NewService(logger)
	gitService := gitops.NewService(logger)
	network := netmon.NewMonitor(cfg, logger)

	var ghClient *github.Client
	if settings.Account != "" && settings.Token != "" {
		ghClient, err = github.NewClient(cfg, settings.Account, settings.Token, logger)
		if err != nil {
			return nil, fmt.Errorf("creating GitHub client: %w", err)
		}
	}

	sched := scheduler.New(cfg, settings, registry, asRecorder(historyRepo), notifier, logger)
	scannerService := scanner.NewService(registry, gitService, sched, notifier, logger)
	detectorService := detector.NewService(registry, gitService, sched.Debouncer(), sched.Busy, logger)

	var runner scheduler.Runner
	if ghClient != nil {
		runner = workflow.NewRunner(gitService, ghClient, network, gitops.IsMissingUpstream, cfg, sched, logger)
	}
	sched.Wire(scannerService, detectorService, runner)

	app := &App{
		Config:        cfg,
		Settings:      settings,
		SettingsStore: settingsStore,
		Registry:      registry,
		Git:           gitService,
		GitHub:        ghClient,
		Network:       network,
		Notifier:      notifier,
		Scanner:       scannerService,
		Detector:      detectorService,
		Scheduler:     sched,
		Status:        status.NewAggregator(registry, sched, detectorService, network),
		History:       historyRepo,
	}

	loggy.Info("Application initialized successfully")
	return app, nil
}

// Ready reports whether the agent can sync, meaning credentials exist
func (a *App) Ready() bool {
	return a.GitHub != nil
}

// RequireReady returns an error when no GitHub credentials are configured
func (a *App) RequireReady() error {
	if !a.Ready() {
		return ErrNotInitialized
	}
	return nil
}

// StartAgent launches the background loops: network probing, scheduling and,
// when enabled, the filesystem watcher. It returns immediately; the loops
// stop when ctx is cancelled.
func (a *App) StartAgent(ctx context.Context) error {
	if err := a.RequireReady(); err != nil {
		return err
	}

	a.Network.Start(ctx)

	a.agentWG.Add(1)
	go func() {
		defer a.agentWG.Done()
		a.Scheduler.Run(ctx)
	}()

	if a.Config.Watch.WatchMode {
		w, err := watcher.New(a.Settings.WatchRoots, a.Registry, a.Scheduler.Debouncer(), a.triggerScan, loggy.GetGlobalLogger())
		if err != nil {
			loggy.Warn("Filesystem watcher unavailable, polling only", "error", err)
		} else {
			a.agentWG.Add(1)
			go func() {
				defer a.agentWG.Done()
				w.Run(ctx)
			}()
		}
	}

	return nil
}

// WaitAgent blocks until the background loops have exited
func (a *App) WaitAgent() {
	a.agentWG.Wait()
}

func (a *App) triggerScan() {
	a.Scanner.ScanOnce(a.Settings.WatchRoots)
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	loggy.Info("Shutting down application")

	a.Network.Stop()
	a.Notifier.Close()

	if err := database.CloseDB(); err != nil {
		loggy.Error("Error closing database connection", "error", err)
	}

	return nil
}

// FromContext retrieves the App instance from the CLI context
func FromContext(c *cli.Context) (*App, error) {
	if c.App.Metadata == nil {
		return nil, fmt.Errorf("app metadata not found in context")
	}

	app, ok := c.App.Metadata["app"].(*App)
	if !ok {
		return nil, fmt.Errorf("app instance not found in context")
	}

	return app, nil
}

// asRecorder adapts a possibly-nil history repository to the scheduler's
// recorder interface without wrapping a typed nil.
func asRecorder(repo history.Repository) scheduler.Recorder {
	if repo == nil {
		return nil
	}
	return repo
}
