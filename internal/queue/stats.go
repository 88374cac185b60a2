package queue

import (
	"context"
	"fmt"

	"github.com/pressgen/pressgen/internal/interfaces"
	"github.com/pressgen/pressgen/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// StatsReporter logs queue depth per status on a cron schedule. It is
// observability only: a task stuck in processing after a crash shows up
// here but is never reclaimed automatically.
type StatsReporter struct {
	storage  interfaces.TaskStorage
	logger   arbor.ILogger
	schedule string
	cron     *cron.Cron
}

// NewStatsReporter creates a stats reporter with the given cron schedule.
func NewStatsReporter(storage interfaces.TaskStorage, logger arbor.ILogger, schedule string) *StatsReporter {
	return &StatsReporter{
		storage:  storage,
		logger:   logger,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start schedules the reporter. Returns an error when the schedule does
// not parse.
func (r *StatsReporter) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, r.report); err != nil {
		return fmt.Errorf("invalid stats schedule '%s': %w", r.schedule, err)
	}
	r.cron.Start()
	r.logger.Info().Str("schedule", r.schedule).Msg("Queue stats reporter started")
	return nil
}

// Stop stops the reporter.
func (r *StatsReporter) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Debug().Msg("Queue stats reporter stopped")
}

// report logs the current task count per status.
func (r *StatsReporter) report() {
	ctx := context.Background()

	counts := make(map[models.TaskStatus]int)
	for _, status := range []models.TaskStatus{
		models.TaskStatusPending,
		models.TaskStatusProcessing,
		models.TaskStatusCompleted,
		models.TaskStatusError,
		models.TaskStatusSkip,
	} {
		count, err := r.storage.CountByStatus(ctx, status)
		if err != nil {
			r.logger.Warn().Err(err).Str("status", string(status)).Msg("Failed to count tasks for stats")
			return
		}
		counts[status] = count
	}

	r.logger.Info().
		Int("pending", counts[models.TaskStatusPending]).
		Int("processing", counts[models.TaskStatusProcessing]).
		Int("completed", counts[models.TaskStatusCompleted]).
		Int("error", counts[models.TaskStatusError]).
		Int("skip", counts[models.TaskStatusSkip]).
		Msg("Queue stats")
}
