package scheduler

import (
	"time"

	"creditline-backend/internal/jobs"
	"creditline-backend/internal/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the ledger maintenance jobs on their configured cron specs
type Scheduler struct {
	cron  *cron.Cron
	jobs  *jobs.JobRunner
	names map[cron.EntryID]string
}

// NewScheduler creates a new scheduler with the provided job runner
func NewScheduler(jobRunner *jobs.JobRunner) *Scheduler {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron:  c,
		jobs:  jobRunner,
		names: make(map[cron.EntryID]string),
	}

	s.registerJobs()
	return s
}

// registerJobs adds every job with a valid spec. A bad spec is logged and
// skipped so one typo does not stop the other jobs.
func (s *Scheduler) registerJobs() {
	cfg := s.jobs.Config().Scheduler

	schedule := []struct {
		name string
		spec string
		run  func()
	}{
		{"fail-stale-payments", cfg.FailStalePayments, s.jobs.FailStalePayments},
		{"send-daily-digest", cfg.SendDailyDigest, s.jobs.SendDailyDigest},
	}

	for _, job := range schedule {
		id, err := s.cron.AddFunc(job.spec, job.run)
		if err != nil {
			logger.Error("Failed to register cron job", "job", job.name, "spec", job.spec, "error", err)
			continue
		}
		s.names[id] = job.name
		logger.Debug("Registered cron job", "job", job.name, "spec", job.spec)
	}

	logger.Info("Cron jobs registered", "entries", len(s.cron.Entries()))
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	for name, next := range s.NextRuns() {
		logger.Info("Next scheduled run", "job", name, "at", next.Format(time.RFC3339))
	}
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// NextRuns maps job names to their next activation. Times are zero until
// the scheduler is started.
func (s *Scheduler) NextRuns() map[string]time.Time {
	out := make(map[string]time.Time, len(s.names))
	for _, e := range s.cron.Entries() {
		out[s.names[e.ID]] = e.Next
	}
	return out
}
