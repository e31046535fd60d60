package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/vk/monoxbridge/internal/bridge"
	"github.com/vk/monoxbridge/internal/config"
	"github.com/vk/monoxbridge/internal/ctxlog"
	"github.com/vk/monoxbridge/internal/sensors"
	"github.com/vk/monoxbridge/internal/sink"
	"github.com/vk/monoxbridge/internal/sink/hass"
	"github.com/vk/monoxbridge/internal/sink/logsink"
	"github.com/vk/monoxbridge/internal/sink/socketio"
)

// AppConfig holds everything an App instance needs to run, as resolved
// from the command line.
type AppConfig struct {
	ConfigPath      string
	HealthcheckPort int
	LogFormat       string
	LogLevel        string
	Once            bool
	DiscoverCIDR    string
}

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	cfg      *AppConfig
	registry *sink.Registry

	mu    sync.Mutex
	model *config.Model
	fleet *bridge.Fleet
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and sink registry.
// A failure to load the configuration is a fatal startup error and panics;
// the caller recovers it into a clean exit.
func NewApp(outW io.Writer, appConfig *AppConfig) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	a := &App{
		outW:     outW,
		logger:   logger,
		cfg:      appConfig,
		registry: coreRegistry(),
	}

	// Discovery mode scans a network instead of running the bridge, so no
	// configuration file is required.
	if appConfig.DiscoverCIDR != "" {
		return a
	}

	model, err := config.Load(ctx, appConfig.ConfigPath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	a.model = model
	logger.Debug("Configuration loaded.",
		"printers", len(model.Printers), "sinks", len(model.Sinks))
	return a
}

// coreRegistry returns a registry with every built-in sink type registered.
func coreRegistry() *sink.Registry {
	r := sink.NewRegistry()
	logsink.Register(r)
	hass.Register(r)
	socketio.Register(r)
	return r
}

// Registry returns the application's sink registry. This is primarily for
// testing.
func (a *App) Registry() *sink.Registry {
	return a.registry
}

// healthcheckPort resolves the effective status server port: the CLI flag
// wins over the config file.
func (a *App) healthcheckPort() int {
	if a.cfg.HealthcheckPort > 0 {
		return a.cfg.HealthcheckPort
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.model != nil {
		return a.model.HealthcheckPort
	}
	return 0
}

func (a *App) setCurrent(model *config.Model, fleet *bridge.Fleet) {
	a.mu.Lock()
	a.model = model
	a.fleet = fleet
	a.mu.Unlock()
}

func (a *App) currentModel() *config.Model {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.model
}

// Snapshots returns the latest snapshot per printer, empty before the
// fleet has made contact.
func (a *App) Snapshots() map[string]*sensors.Snapshot {
	a.mu.Lock()
	fleet := a.fleet
	a.mu.Unlock()
	if fleet == nil {
		return map[string]*sensors.Snapshot{}
	}
	return fleet.Snapshots()
}
