// Package app is the composition root: it wires the event bus, the state
// registry and the three managers together and starts/stops them as a unit.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Sakenfor/pixsim7-sub008/internal/compose"
	"github.com/Sakenfor/pixsim7-sub008/internal/config"
	"github.com/Sakenfor/pixsim7-sub008/internal/db"
	"github.com/Sakenfor/pixsim7-sub008/internal/events"
	"github.com/Sakenfor/pixsim7-sub008/internal/health"
	"github.com/Sakenfor/pixsim7-sub008/internal/logger"
	"github.com/Sakenfor/pixsim7-sub008/internal/logs"
	"github.com/Sakenfor/pixsim7-sub008/internal/process"
	"github.com/Sakenfor/pixsim7-sub008/internal/server"
	"github.com/Sakenfor/pixsim7-sub008/internal/state"
)

// recordTimeout bounds each event-history insert.
const recordTimeout = 2 * time.Second

// Options tune the composition beyond the global config file.
type Options struct {
	// HistoryEnabled persists bus events to the SQLite store.
	HistoryEnabled bool
	// ServeAPI runs the HTTP/WebSocket server.
	ServeAPI bool
	// AutoStart starts every defined service after wiring.
	AutoStart bool
}

// App owns the wired launcher components.
type App struct {
	Global      *config.GlobalConfig
	Definitions []*config.ServiceDefinition

	Bus      *events.Bus
	Registry *state.Registry
	Process  *process.Manager
	Health   *health.Manager
	Logs     *logs.Manager

	DB      *db.DB
	History *db.EventRepository
	Server  *server.Server

	opts        Options
	recorderSub *events.Subscription
}

// New loads the manifest and wires the launcher components. Nothing starts
// running until Start is called.
func New(global *config.GlobalConfig, opts Options) (*App, error) {
	manifestPath, err := global.ManifestPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}
	defs, err := config.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	return NewWithDefinitions(global, defs, opts)
}

// NewWithDefinitions wires the launcher for an already-built definition
// list (used by tests and embedding callers).
func NewWithDefinitions(global *config.GlobalConfig, defs []*config.ServiceDefinition, opts Options) (*App, error) {
	if err := attachComposeLifecycles(defs); err != nil {
		return nil, err
	}

	logDir, err := global.LogDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve log directory: %w", err)
	}

	bus := events.NewBus()
	registry := state.NewRegistry(defs)

	a := &App{
		Global:      global,
		Definitions: defs,
		Bus:         bus,
		Registry:    registry,
		Process:     process.New(config.DefaultProcessManagerConfig(logDir), defs, registry, bus),
		Health:      health.New(config.DefaultHealthManagerConfig(), defs, registry, bus),
		Logs:        logs.New(config.DefaultLogManagerConfig(logDir), registry, bus),
		opts:        opts,
	}

	if opts.HistoryEnabled {
		dbPath, err := global.DatabasePath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		database, err := db.New(db.DefaultConfig(dbPath))
		if err != nil {
			return nil, err
		}
		a.DB = database
		a.History = db.NewEventRepository(database)
	}

	if opts.ServeAPI {
		serverCfg := server.DefaultConfig()
		serverCfg.Host = global.Server.Host
		serverCfg.Port = global.Server.Port
		a.Server = server.New(serverCfg, server.Deps{
			Process: a.Process,
			Health:  a.Health,
			Logs:    a.Logs,
			Bus:     bus,
			History: a.History,
		})
	}

	return a, nil
}

// attachComposeLifecycles turns compose-file bindings on detached
// definitions into Lifecycle implementations.
func attachComposeLifecycles(defs []*config.ServiceDefinition) error {
	for _, def := range defs {
		if !def.IsDetached() || def.Lifecycle != nil || def.ComposeFile == "" {
			continue
		}
		lifecycle, err := compose.NewLifecycle(def.ComposeFile, def.ComposeService)
		if err != nil {
			return fmt.Errorf("service %s: %w", def.Key, err)
		}
		def.Lifecycle = lifecycle
	}
	return nil
}

// Start brings the background pieces up: event recording, log tailing,
// health polling, external-instance detection and (optionally) every
// defined service.
func (a *App) Start(ctx context.Context) error {
	if a.History != nil {
		history := a.History
		a.recorderSub = a.Bus.Subscribe("*", func(event events.Event) {
			recordCtx, cancel := context.WithTimeout(context.Background(), recordTimeout)
			defer cancel()
			if err := history.Record(recordCtx, event); err != nil {
				logger.WithError(err).Debug("Failed to record event")
			}
		})
	}

	a.Logs.StartMonitoring()
	a.Health.Start()
	a.Process.DetectExternal(ctx)

	if a.opts.AutoStart {
		if err := a.StartAll(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run starts the launcher and, when the API is enabled, serves until the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Stop(context.Background())

	if a.Server != nil {
		return a.Server.Start(ctx)
	}
	<-ctx.Done()
	return nil
}

// Stop tears everything down in reverse order: running services first, then
// the background loops, then the recorder and database.
func (a *App) Stop(ctx context.Context) {
	a.Process.Cleanup(ctx)
	a.Health.Stop()
	a.Logs.StopMonitoring()

	if a.recorderSub != nil {
		a.Bus.Unsubscribe(a.recorderSub)
		a.recorderSub = nil
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close database")
		}
	}
}

// StartAll starts every defined service in dependency order.
func (a *App) StartAll(ctx context.Context) error {
	for _, def := range a.Definitions {
		if err := a.Process.Start(ctx, def.Key); err != nil {
			return fmt.Errorf("failed to start %s: %w", def.Key, err)
		}
	}
	return nil
}

// StopAll stops every running service, dependents before dependencies.
func (a *App) StopAll(ctx context.Context) {
	a.Process.Cleanup(ctx)
}
