package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TriggerConfig controls when maintenance jobs are submitted
type TriggerConfig struct {
	// SweepInterval is how often the overdue sweep runs and the export check happens
	SweepInterval time.Duration
	// DailyExportHour is the local hour after which the day's trial balance export
	// is submitted once; negative disables the export
	DailyExportHour int
}

func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{SweepInterval: time.Hour, DailyExportHour: 1}
}

// CronTrigger submits an overdue sweep every interval and one trial balance export a day
type CronTrigger struct {
	config    TriggerConfig
	scheduler *Scheduler
	logger    *zap.Logger
	now       func() time.Time

	cancel         context.CancelFunc
	wg             sync.WaitGroup
	mu             sync.Mutex
	isRunning      bool
	lastExportDate string
}

func NewCronTrigger(config TriggerConfig, scheduler *Scheduler, logger *zap.Logger) *CronTrigger {
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultTriggerConfig().SweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronTrigger{
		config:    config,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
}

// Start runs a first check immediately, then one per interval
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Cron trigger started",
		zap.Duration("sweep_interval", c.config.SweepInterval),
		zap.Int("daily_export_hour", c.config.DailyExportHour),
	)
	return nil
}

func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	c.tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick submits the jobs due now
func (c *CronTrigger) tick() {
	now := c.now()
	if _, err := c.scheduler.Schedule(JobOverdueSweep, now); err != nil {
		c.logger.Error("Failed to schedule overdue sweep", zap.Error(err))
	}

	if c.config.DailyExportHour < 0 || now.Hour() < c.config.DailyExportHour {
		return
	}
	today := now.Format("2006-01-02")
	c.mu.Lock()
	if c.lastExportDate == today {
		c.mu.Unlock()
		return
	}
	c.lastExportDate = today
	c.mu.Unlock()

	if _, err := c.scheduler.Schedule(JobTrialBalanceExport, now); err != nil {
		c.logger.Error("Failed to schedule trial balance export", zap.Error(err))
		c.mu.Lock()
		c.lastExportDate = ""
		c.mu.Unlock()
	}
}

// TriggerNow submits the given job kind immediately, outside the schedule
func (c *CronTrigger) TriggerNow(kind JobKind, asOf time.Time) (*Job, error) {
	if asOf.IsZero() {
		asOf = c.now()
	}
	return c.scheduler.Schedule(kind, asOf)
}
