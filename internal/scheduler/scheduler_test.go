package scheduler

import (
	"testing"

	"creditline-backend/internal/config"
	"creditline-backend/internal/jobs"

	"github.com/stretchr/testify/assert"
)

func TestNewScheduler_RegistersJobs(t *testing.T) {
	cfg := &config.Config{Scheduler: config.SchedulerConfig{
		FailStalePayments: "0 */15 * * * *",
		SendDailyDigest:   "0 0 6 * * *",
	}}
	s := NewScheduler(jobs.NewJobRunner(&jobs.Services{}, cfg))

	assert.Len(t, s.cron.Entries(), 2)
	assert.True(t, s.NextRuns()["send-daily-digest"].IsZero())

	s.Start()
	defer s.Stop()

	next := s.NextRuns()
	assert.Len(t, next, 2)
	assert.False(t, next["fail-stale-payments"].IsZero())
	digest := next["send-daily-digest"]
	assert.Equal(t, 6, digest.Hour())
	assert.Equal(t, 0, digest.Minute())
}

func TestNewScheduler_BadSpecIsSkipped(t *testing.T) {
	cfg := &config.Config{Scheduler: config.SchedulerConfig{
		FailStalePayments: "not a cron spec",
		SendDailyDigest:   "0 0 6 * * *",
	}}
	s := NewScheduler(jobs.NewJobRunner(&jobs.Services{}, cfg))

	assert.Len(t, s.cron.Entries(), 1)
	_, ok := s.NextRuns()["fail-stale-payments"]
	assert.False(t, ok)
}
