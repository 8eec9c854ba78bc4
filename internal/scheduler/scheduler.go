// Package scheduler runs the periodic cache maintenance jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Sweeper drops expired cache entries.
type Sweeper interface {
	Sweep() int
}

// Warmer prefetches current weather for a set of locations.
type Warmer interface {
	Warm(ctx context.Context, locations []string) error
}

// Config selects which jobs run. A zero interval disables the job.
type Config struct {
	SweepInterval time.Duration
	WarmInterval  time.Duration
	// WarmTimeout bounds one warming run. Defaults to 30s.
	WarmTimeout time.Duration
	Locations   []string
}

// Scheduler owns a gocron scheduler with the sweep and warm jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cfg       Config
	sweeper   Sweeper
	warmer    Warmer
	logger    *zap.Logger
}

// New creates a Scheduler. sweeper or warmer may be nil to skip that job.
func New(cfg Config, sweeper Sweeper, warmer Warmer, logger *zap.Logger) *Scheduler {
	if cfg.WarmTimeout <= 0 {
		cfg.WarmTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		cfg:       cfg,
		sweeper:   sweeper,
		warmer:    warmer,
		logger:    logger,
	}
}

// Start registers the enabled jobs and starts the scheduler. Jobs first run immediately.
func (s *Scheduler) Start() error {
	if s.sweeper != nil && s.cfg.SweepInterval > 0 {
		if _, err := s.scheduler.Every(s.cfg.SweepInterval).Tag("sweep").Do(s.sweep); err != nil {
			return err
		}
		s.logger.Info("cache sweep scheduled", zap.Duration("interval", s.cfg.SweepInterval))
	}
	if s.warmer != nil && s.cfg.WarmInterval > 0 && len(s.cfg.Locations) > 0 {
		if _, err := s.scheduler.Every(s.cfg.WarmInterval).Tag("warm").Do(s.warm); err != nil {
			return err
		}
		s.logger.Info("cache warming scheduled",
			zap.Duration("interval", s.cfg.WarmInterval),
			zap.Int("locations", len(s.cfg.Locations)))
	}
	if len(s.scheduler.Jobs()) == 0 {
		s.logger.Info("scheduler: no jobs enabled")
		return nil
	}
	s.scheduler.StartAsync()
	return nil
}

// JobCount returns how many jobs are registered.
func (s *Scheduler) JobCount() int {
	return len(s.scheduler.Jobs())
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	if s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) sweep() {
	if n := s.sweeper.Sweep(); n > 0 {
		s.logger.Debug("swept expired cache entries", zap.Int("removed", n))
	}
}

func (s *Scheduler) warm() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WarmTimeout)
	defer cancel()
	if err := s.warmer.Warm(ctx, s.cfg.Locations); err != nil {
		s.logger.Warn("cache warming failed", zap.Error(err))
	}
}
