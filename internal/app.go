// Package internal contains core application functionality
package internal

import (
	"fmt"

	"github.com/karloscodes/cartridge"

	"fintrack/internal/config"
	"fintrack/internal/database"
	"fintrack/internal/jobs"
	"fintrack/internal/live"
	"fintrack/internal/pkg/geoip"
)

// Application wraps cartridge.Application with fintrack-specific components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager // Fintrack-specific DB manager with migration methods
	Hub       *live.Hub
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	// Initialize database manager (fintrack-specific with migration methods)
	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Country lookups are optional; a missing database file just disables
	// the geo fallback.
	geoip.InitLogger(logger)
	geoip.InitGeoDB()

	scheduler, err := jobs.NewScheduler(dbManager, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	// The hub is shared between the route handlers (post-commit publishes,
	// websocket upgrades) and the broadcaster worker.
	hub := live.NewHub(logger)
	broadcaster := live.NewBroadcaster(hub, dbManager, logger)

	// The tracking snippet posts from customer pages, so the Sec-Fetch-Site
	// middleware must accept cross-site browser requests. Requests without
	// the header (curl, server-to-server) are still rejected.
	serverCfg := cartridge.DefaultServerConfig()
	serverCfg.SecFetchSiteAllowedValues = []string{"cross-site", "same-site", "same-origin"}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:       cfg,
		Logger:       logger,
		DBManager:    dbManager,
		ServerConfig: serverCfg,
		RouteMountFunc: func(srv *cartridge.Server) {
			MountAppRoutesWithHub(srv, hub)
		},
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler, broadcaster},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Hub:         hub,
	}, nil
}
