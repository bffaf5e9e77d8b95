package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper is one expiry pass. Implemented by ExpirySweeperService.
type Sweeper interface {
	RunOnce(ctx context.Context) (SweepResult, error)
}

// CronService manages scheduled background jobs
type CronService struct {
	cron     *cron.Cron
	sweeper  Sweeper
	schedule string
	timeout  time.Duration
	logger   *logrus.Logger
	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewCronService creates a new CronService. schedule accepts standard cron
// specs and descriptors such as "@every 1m".
func NewCronService(sweeper Sweeper, schedule string, logger *logrus.Logger) *CronService {
	c := cron.New(
		cron.WithLogger(cron.PrintfLogger(logger)),
		cron.WithChain(cron.Recover(cron.PrintfLogger(logger))),
	)
	ctx, cancel := context.WithCancel(context.Background())

	return &CronService{
		cron:     c,
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  time.Minute,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	if _, err := s.cron.AddFunc(s.schedule, s.expireBookingsJob); err != nil {
		return fmt.Errorf("failed to schedule expiry sweep job: %w", err)
	}
	s.logger.WithField("schedule", s.schedule).Info("Scheduled: Expire lapsed bookings")

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop cancels an in-flight sweep and waits for running jobs to return
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// expireBookingsJob runs one sweep unless the previous one is still going
func (s *CronService) expireBookingsJob() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("[CRON] Previous expiry sweep still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	started := time.Now()
	result, err := s.sweeper.RunOnce(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Expiry sweep failed")
		return
	}
	if result.Scanned > 0 {
		s.logger.WithFields(logrus.Fields{
			"expired":     result.Expired,
			"skipped":     result.Skipped,
			"failed":      result.Failed,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("[CRON] Expiry sweep completed")
	}
}

// RunSweepNow triggers the expiry job immediately, honoring the overlap guard
func (s *CronService) RunSweepNow() {
	s.logger.Info("[MANUAL] Running expiry sweep now...")
	s.expireBookingsJob()
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":       len(entries) > 0,
		"job_count":     len(entries),
		"sweep_running": s.running.Load(),
		"jobs":          jobs,
	}
}
