package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/database"
	"fintrack/internal/events"
)

// Scheduler is responsible for running background jobs
type Scheduler struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool
	cfg       *config.Config

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool

	// Job instances
	cleanupJob *CleanupJob
	geoLiteJob *GeoLiteUpdaterJob

	// Tickers for each job type
	sessionTicker *time.Ticker
	cleanupTicker *time.Ticker
	geoLiteTicker *time.Ticker
}

func NewScheduler(dbManager *database.DBManager, logger *slog.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := config.GetConfig()

	s := &Scheduler{
		dbManager: dbManager,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		enabled:   true,
		isRunning: false,
		cfg:       cfg,
	}

	s.cleanupJob = NewCleanupJob(dbManager, logger, cfg)
	s.geoLiteJob = NewGeoLiteUpdaterJob(logger, cfg)

	return s, nil
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start begins all background jobs
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...")

	s.isRunning = true

	s.startSessionPurgeJob()
	s.startCleanupJob()
	s.startGeoLiteJob()

	s.logger.Info("Background jobs started",
		slog.Bool("enabled", s.enabled),
		slog.Bool("isRunning", s.isRunning))

	return nil
}

// startSessionPurgeJob sweeps expired liveness rows even when no dashboard is
// connected, so ActiveSession never grows unbounded.
func (s *Scheduler) startSessionPurgeJob() {
	interval := s.cfg.ActiveSessionTimeout()
	s.logger.Info("Starting session purge job", slog.Duration("interval", interval))
	s.sessionTicker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-s.sessionTicker.C:
				s.executeJobSafely("session_purge", func() error {
					_, err := events.PurgeExpiredSessions(s.dbManager, s.logger, s.cfg.ActiveSessionTimeout())
					return err
				})
			case <-s.ctx.Done():
				s.logger.Info("Session purge job stopped")
				return
			}
		}
	}()
}

func (s *Scheduler) startCleanupJob() {
	interval := 24 * time.Hour
	s.logger.Info("Starting cleanup job", slog.Duration("interval", interval))
	s.cleanupTicker = time.NewTicker(interval)

	go func() {
		// Run initial cleanup
		s.logger.Info("Running initial cleanup...")
		s.executeJobSafely("cleanup", s.cleanupJob.Run)

		for {
			select {
			case <-s.cleanupTicker.C:
				s.executeJobSafely("cleanup", s.cleanupJob.Run)
			case <-s.ctx.Done():
				s.logger.Info("Cleanup job stopped")
				return
			}
		}
	}()
}

func (s *Scheduler) startGeoLiteJob() {
	s.logger.Info("Starting GeoLite updater job", slog.Duration("interval", GeoLiteUpdateInterval))
	s.geoLiteTicker = time.NewTicker(GeoLiteUpdateInterval)

	go func() {
		s.executeJobSafely("geolite_updater", s.geoLiteJob.Run)

		for {
			select {
			case <-s.geoLiteTicker.C:
				s.executeJobSafely("geolite_updater", s.geoLiteJob.Run)
			case <-s.ctx.Done():
				s.logger.Info("GeoLite updater job stopped")
				return
			}
		}
	}()
}

// Stop halts all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	if s.sessionTicker != nil {
		s.sessionTicker.Stop()
	}
	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
	}
	if s.geoLiteTicker != nil {
		s.geoLiteTicker.Stop()
	}

	s.cancel()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}
