package live

import (
	"context"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"

	"fintrack/internal/config"
	"fintrack/internal/events"
)

// Broadcaster periodically sweeps expired liveness rows and pushes the
// resulting active-user count to all observers. Implements
// cartridge.BackgroundWorker.
type Broadcaster struct {
	hub       *Hub
	dbManager cartridge.DBManager
	logger    *slog.Logger
	cfg       *config.Config
	ctx       context.Context
	cancel    context.CancelFunc
	ticker    *time.Ticker
	isRunning bool
}

// NewBroadcaster creates a broadcaster bound to the hub.
func NewBroadcaster(hub *Hub, dbManager cartridge.DBManager, logger *slog.Logger) *Broadcaster {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broadcaster{
		hub:       hub,
		dbManager: dbManager,
		logger:    logger,
		cfg:       config.GetConfig(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins the broadcast loop.
func (b *Broadcaster) Start() error {
	if b.isRunning {
		b.logger.Info("Live broadcaster already running.")
		return nil
	}

	interval := b.cfg.BroadcastInterval()
	b.logger.Info("Starting live broadcaster", slog.Duration("interval", interval))
	b.ticker = time.NewTicker(interval)
	b.isRunning = true

	go func() {
		for {
			select {
			case <-b.ticker.C:
				b.tickSafely()
			case <-b.ctx.Done():
				b.logger.Info("Live broadcaster stopped")
				return
			}
		}
	}()

	return nil
}

// tickSafely runs one broadcast cycle with panic recovery so a bad cycle
// never kills the loop.
func (b *Broadcaster) tickSafely() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Panic recovered in live broadcaster", slog.Any("panic", r))
		}
	}()

	// The sweep runs every tick, observers or not, so liveness rows never
	// pile up while the dashboard is closed.
	if _, err := events.PurgeExpiredSessions(b.dbManager, b.logger, b.cfg.ActiveSessionTimeout()); err != nil {
		b.logger.Error("Failed to purge expired sessions", slog.Any("error", err))
	}

	if b.hub.ClientCount() == 0 {
		return
	}

	count, err := events.CountActiveSessions(b.dbManager.GetConnection(), b.cfg.ActiveUsersWindow())
	if err != nil {
		b.logger.Error("Failed to count active sessions", slog.Any("error", err))
		return
	}

	b.hub.Publish(events.LiveActiveUsersUpdate, map[string]any{
		"active_users": count,
	})
}

// Stop halts the broadcast loop.
func (b *Broadcaster) Stop() {
	b.logger.Info("Stopping live broadcaster...")
	if b.ticker != nil {
		b.ticker.Stop()
	}
	b.cancel()
	b.isRunning = false
}
