// Package daemon wires configuration, storage, the browser tool backend, the
// reconciliation engine, and the gateway into one long-running service.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harun/tabgate/internal/config"
	"github.com/harun/tabgate/internal/logger"
	"github.com/harun/tabgate/internal/observability"
	"github.com/harun/tabgate/internal/tracing"
	"github.com/harun/tabgate/pkg/browsertool"
	"github.com/harun/tabgate/pkg/gateway"
	"github.com/harun/tabgate/pkg/mcpclient"
	"github.com/harun/tabgate/pkg/reconciler"
	"github.com/harun/tabgate/pkg/tabstore"
	"github.com/harun/tabgate/pkg/tooladapter"
)

// stalePruneAge is how long an untouched conversation row survives before the
// janitor drops it.
const stalePruneAge = 30 * 24 * time.Hour

// toolBackend is what the daemon needs from a browser tool implementation.
type toolBackend interface {
	tooladapter.ToolCaller
	Close() error
}

// Daemon represents the tabgate daemon service
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	store    *tabstore.Store
	backend  toolBackend
	capTable *config.CapabilityTable
	engine   *reconciler.Engine

	gatewayServer *gateway.Server
	janitor       *cron.Cron
	lifecycle     *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	observability.EnsureRegistered()

	d := &Daemon{
		config: cfg,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := d.initialize(); err != nil {
		cancel()
		return nil, err
	}

	d.lifecycle = NewLifecycleManager(d)
	return d, nil
}

func (d *Daemon) initialize() error {
	store, err := tabstore.New(tabstore.Config{
		Path:   d.config.DatabasePath(),
		Logger: d.logger.GetZerolog(),
	})
	if err != nil {
		return fmt.Errorf("failed to open tab state store: %w", err)
	}
	d.store = store
	d.logger.Info().Str("path", d.config.DatabasePath()).Msg("Tab state store initialized")

	backend, fallback, err := d.buildBackend()
	if err != nil {
		store.Close()
		return err
	}
	d.backend = backend

	d.capTable = config.NewCapabilityTable(d.config.Agents, fallback, d.logger.GetZerolog())
	d.logger.Info().Int("agents", len(d.config.Agents)).Msg("Capability table initialized")

	engine, err := reconciler.New(reconciler.Config{
		Store:        d.store,
		Tools:        d.backend,
		Capabilities: d.capTable.Resolve,
		Logger:       d.logger.GetZerolog(),
		CacheTTL:     d.config.Engine.CacheTTL(),
	})
	if err != nil {
		backend.Close()
		store.Close()
		return fmt.Errorf("failed to create reconciliation engine: %w", err)
	}
	d.engine = engine
	d.logger.Info().Msg("Reconciliation engine initialized")

	gatewayServer, err := gateway.NewServer(gateway.Config{
		Port:         d.config.Gateway.Port,
		Host:         d.config.Gateway.Host,
		SharedSecret: d.config.Gateway.SharedSecret,
		TickInterval: time.Duration(d.config.Gateway.TickIntervalSeconds) * time.Second,
		Engine:       d.engine,
		Logger:       d.logger.GetZerolog(),
	})
	if err != nil {
		d.engine.Close()
		backend.Close()
		store.Close()
		return fmt.Errorf("failed to create gateway server: %w", err)
	}
	d.gatewayServer = gatewayServer
	d.logger.Info().Int("port", d.config.Gateway.Port).Msg("Gateway server initialized")

	return nil
}

// buildBackend constructs the configured browser tool backend along with the
// default capability set for agents the capability table does not know.
func (d *Daemon) buildBackend() (toolBackend, tooladapter.Capabilities, error) {
	switch d.config.Browser.Backend {
	case "local":
		backend, err := browsertool.New(browsertool.Config{
			ControlURL:      d.config.Browser.Local.ControlURL,
			Headless:        d.config.Browser.Local.Headless,
			NoSandbox:       d.config.Browser.Local.NoSandbox,
			ChromePath:      d.config.Browser.Local.ChromePath,
			UserDataDir:     d.config.Browser.Local.UserDataDir,
			NavigateTimeout: time.Duration(d.config.Browser.Local.NavigateTimeoutSeconds) * time.Second,
			Logger:          d.logger.GetZerolog(),
		})
		if err != nil {
			return nil, tooladapter.Capabilities{}, fmt.Errorf("failed to start local browser backend: %w", err)
		}
		d.logger.Info().Msg("Local browser backend started")
		return backend, tooladapter.Capabilities{
			TabsTool:         browsertool.ToolTabs,
			NavigateTool:     browsertool.ToolNavigate,
			NavigateBackTool: browsertool.ToolNavigateBack,
		}, nil

	case "mcp":
		client, err := mcpclient.New(mcpclient.Config{
			Command:        d.config.Browser.MCP.Command,
			Args:           d.config.Browser.MCP.Args,
			RequestTimeout: time.Duration(d.config.Browser.MCP.RequestTimeoutSeconds) * time.Second,
			Logger:         d.logger.GetZerolog(),
		})
		if err != nil {
			return nil, tooladapter.Capabilities{}, fmt.Errorf("failed to create mcp backend: %w", err)
		}
		d.logger.Info().Str("command", d.config.Browser.MCP.Command).Msg("MCP browser backend configured")
		// fallback is filled in after tool discovery in Start
		return client, tooladapter.Capabilities{}, nil

	default:
		return nil, tooladapter.Capabilities{}, fmt.Errorf("unknown browser backend: %s", d.config.Browser.Backend)
	}
}

// Start starts the daemon service
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	log := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	log.Info().Msg("Starting tabgate daemon")

	if err := d.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	// MCP backends learn their toolset from the live server
	if client, ok := d.backend.(*mcpclient.Client); ok {
		if err := client.Start(d.ctx); err != nil {
			return fmt.Errorf("failed to start mcp backend: %w", err)
		}
		caps, err := client.Capabilities(d.ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Tool discovery failed, agents without explicit capabilities get none")
		} else {
			d.capTable.SetFallback(caps)
			log.Info().
				Str("tabs_tool", caps.TabsTool).
				Str("navigate_tool", caps.NavigateTool).
				Msg("Browser capabilities discovered")
		}
	}

	if d.config.CapabilitiesFile != "" {
		if err := d.capTable.Watch(d.config.CapabilitiesFile); err != nil {
			log.Warn().Err(err).Str("path", d.config.CapabilitiesFile).Msg("Failed to watch capabilities file")
		} else {
			log.Info().Str("path", d.config.CapabilitiesFile).Msg("Watching capabilities file")
		}
	}

	if err := d.gatewayServer.Start(); err != nil {
		return fmt.Errorf("failed to start gateway server: %w", err)
	}
	log.Info().Msg("Gateway server started")

	d.janitor = cron.New()
	if _, err := d.janitor.AddFunc("@every 1m", d.runJanitor); err != nil {
		return fmt.Errorf("failed to schedule janitor: %w", err)
	}
	d.janitor.Start()
	log.Info().Msg("Janitor scheduled")

	log.Info().Msg("Daemon started successfully")
	return nil
}

// runJanitor drops expired cache entries and prunes stale conversation rows.
func (d *Daemon) runJanitor() {
	swept := d.engine.Sweep()

	ctx, cancel := context.WithTimeout(d.ctx, 30*time.Second)
	defer cancel()
	pruned, err := d.store.PruneOlderThan(ctx, stalePruneAge)
	if err != nil {
		d.logger.Error().Err(err).Msg("Janitor prune failed")
	}

	if swept > 0 || pruned > 0 {
		d.logger.Debug().
			Int("cache_entries", swept).
			Int64("state_rows", pruned).
			Msg("Janitor pass complete")
	}
}

// Stop stops the daemon service gracefully
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	log := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	log.Info().Msg("Stopping tabgate daemon")

	if d.janitor != nil {
		<-d.janitor.Stop().Done()
	}

	if d.gatewayServer != nil {
		if err := d.gatewayServer.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop gateway server")
		}
	}

	if d.engine != nil {
		d.engine.Close()
	}

	if d.capTable != nil {
		if err := d.capTable.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close capability table")
		}
	}

	if d.backend != nil {
		if err := d.backend.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close browser backend")
		}
	}

	if d.store != nil {
		if err := d.store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close tab state store")
		}
	}

	d.cancel()

	if err := d.lifecycle.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	log.Info().Msg("Daemon stopped successfully")
	return nil
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
	}
	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
		status.PendingOperations = d.engine.PendingOperations()
	}
	return status
}

// Wait waits for the daemon to stop
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	d.logger.Info().Str("signal", sig.String()).Msg("Received signal")

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetEngine returns the reconciliation engine
func (d *Daemon) GetEngine() *reconciler.Engine {
	return d.engine
}

// GetGatewayServer returns the gateway server
func (d *Daemon) GetGatewayServer() *gateway.Server {
	return d.gatewayServer
}

// GetStore returns the tab state store
func (d *Daemon) GetStore() *tabstore.Store {
	return d.store
}

// Status represents daemon status
type Status struct {
	Running           bool
	Uptime            time.Duration
	StartTime         time.Time
	PendingOperations int
}
