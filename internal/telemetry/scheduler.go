package telemetry

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler is the consolidated cron scheduler for the worker mode process:
// a single named job table instead of one goroutine ticker per background
// task, registered with robfig/cron/v3 for observability and staggered
// scheduling.
type Scheduler struct {
	cron   *cron.Cron
	logger interface {
		Error(msg string, args ...any)
		Info(msg string, args ...any)
	}
}

// NewScheduler builds a Scheduler using wall-clock time (no seconds field).
func NewScheduler(logger interface {
	Error(msg string, args ...any)
	Info(msg string, args ...any)
}) *Scheduler {
	return &Scheduler{cron: cron.New(), logger: logger}
}

// Job is a named, schedulable unit of background work.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Register adds job to the schedule.
func (s *Scheduler) Register(ctx context.Context, job Job) error {
	_, err := s.cron.AddFunc(job.Spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if err := job.Run(runCtx); err != nil {
			s.logger.Error("scheduled job failed", "job", job.Name, "error", err)
			return
		}
		s.logger.Info("scheduled job completed", "job", job.Name)
	})
	return err
}

// Start begins running the scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish and stops the scheduler.
func (s *Scheduler) Stop() {
	c := s.cron.Stop()
	<-c.Done()
}

// DefaultJobs returns the standard job table: hourly rollup at HH:05, daily
// rollup at 00:15, anomaly poll every 5 minutes, self-healing scan hourly,
// DLQ prune daily.
func DefaultJobs(roller *Roller, anomalyPoll func(ctx context.Context) error, selfHealScan func(ctx context.Context) error, dlqPrune func(ctx context.Context) error) []Job {
	return []Job{
		{Name: "hourly_rollup", Spec: "5 * * * *", Run: func(ctx context.Context) error {
			return roller.RunHourly(ctx, time.Now())
		}},
		{Name: "daily_rollup", Spec: "15 0 * * *", Run: func(ctx context.Context) error {
			return roller.RunDaily(ctx, time.Now())
		}},
		{Name: "anomaly_poll", Spec: "*/5 * * * *", Run: anomalyPoll},
		{Name: "self_heal_scan", Spec: "0 * * * *", Run: selfHealScan},
		{Name: "dlq_prune", Spec: "30 2 * * *", Run: dlqPrune},
	}
}
