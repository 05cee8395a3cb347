// Package schedule runs a job on a cron schedule. A tick that fires while
// the previous run is still going is skipped.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Parse parses a standard five-field expression or a descriptor such as
// @hourly or @every 30m.
func Parse(expr string) (cron.Schedule, error) {
	s, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return s, nil
}

// Upcoming returns the next n activation times of s after ref.
func Upcoming(s cron.Schedule, ref time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for t := ref; len(out) < n; {
		t = s.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out
}

// Scheduler drives a Job from a cron schedule.
type Scheduler struct {
	sched  cron.Schedule
	job    Job
	logger *slog.Logger
}

// New creates a Scheduler. A nil logger discards.
func New(sched cron.Schedule, job Job, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{sched: sched, job: job, logger: logger}
}

// Run blocks until ctx is cancelled, then waits for an in-flight job to
// finish. Jobs receive ctx.
func (s *Scheduler) Run(ctx context.Context) {
	l := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	c.Schedule(s.sched, cron.FuncJob(func() {
		start := time.Now()
		if err := s.job(ctx); err != nil {
			s.logger.Error("scheduled run failed", "error", err, "elapsed", time.Since(start))
			return
		}
		s.logger.Info("scheduled run finished", "elapsed", time.Since(start))
	}))

	c.Start()
	s.logger.Info("scheduler started", "next", s.sched.Next(time.Now()))
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
