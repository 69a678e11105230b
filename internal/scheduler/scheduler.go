// Package scheduler provides cron-based job scheduling for citabot.
//
// It drives the periodic session sweep, appointment reminders and workbook
// backups.
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Well-known schedules for the built-in maintenance jobs.
const (
	ScheduleSweep     = "* * * * *"    // every minute
	ScheduleBackup    = "0 3 * * *"    // daily at 03:00
	ScheduleStats     = "*/5 * * * *"  // every five minutes
	ScheduleReminders = "*/10 * * * *" // every ten minutes
)

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler using the standard
// 5-field expression format (min, hour, dom, month, dow). Panicking jobs are
// recovered so one bad run cannot take the process down.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a named task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(name, expr string, task func()) error {
	id, err := s.cron.AddFunc(expr, task)
	if err != nil {
		return err
	}
	slog.Debug("Scheduler.AddJob: job registered", "name", name, "expr", expr, "entryID", int(id))
	return nil
}

// JobCount returns the number of registered jobs.
func (s *Scheduler) JobCount() int {
	return len(s.cron.Entries())
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
