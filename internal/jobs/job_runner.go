package jobs

import (
	"time"

	"creditline-backend/internal/config"
	"creditline-backend/internal/logger"
	"creditline-backend/internal/metrics"
	"creditline-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	config   *config.Config
	now      func() time.Time
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Transactions service.TransactionService
	Reports      service.ReportingService
	Notifier     service.Notifier
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		services: services,
		config:   cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Config exposes the schedule settings to the scheduler
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery and counts the result
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func() error) {
	result := "success"
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
			result = "panic"
		}
		metrics.JobRuns.WithLabelValues(jobName, result).Inc()
	}()

	started := time.Now()
	logger.Info("Starting job", "job", jobName)
	if err := jobFunc(); err != nil {
		result = "error"
		logger.Error("Job failed", "job", jobName, "error", err, "duration_ms", time.Since(started).Milliseconds())
		return
	}
	logger.Info("Job completed", "job", jobName, "duration_ms", time.Since(started).Milliseconds())
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.FailStalePayments()
	jr.SendDailyDigest()
}
