package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/pressgen/pressgen/internal/common"
	"github.com/pressgen/pressgen/internal/interfaces"
	"github.com/pressgen/pressgen/internal/models"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// TaskStorage implements the TaskStorage interface for Badger.
// Tasks are stored as models.Task records keyed by task ID with a
// secondary index on Status for claim queries.
type TaskStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTaskStorage creates a new TaskStorage instance
func NewTaskStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TaskStorage {
	return &TaskStorage{
		db:     db,
		logger: logger,
	}
}

// Enqueue persists a new pending task and returns its generated ID.
func (s *TaskStorage) Enqueue(ctx context.Context, taskType models.TaskType, payload []byte) (string, error) {
	task := models.Task{
		ID:        common.NewTaskID(),
		Type:      taskType,
		Payload:   json.RawMessage(payload),
		Status:    models.TaskStatusPending,
		Attempts:  0,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.db.Store().Insert(task.ID, task); err != nil {
		s.logger.Error().Err(err).Str("task_type", string(taskType)).Msg("BadgerDB: Failed to insert task")
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("task_type", string(taskType)).
		Msg("Task enqueued")
	return task.ID, nil
}

// ClaimBatch returns up to limit claimable tasks in FIFO order by creation
// time. Claimable means pending, or error with attempts < maxRetries.
// Skip tasks are excluded by construction since only the pending and error
// indexes are queried.
func (s *TaskStorage) ClaimBatch(ctx context.Context, limit int, maxRetries int) ([]*models.Task, error) {
	if limit <= 0 {
		return nil, nil
	}

	var pending []models.Task
	if err := s.db.Store().Find(&pending, badgerhold.Where("Status").Eq(models.TaskStatusPending)); err != nil {
		return nil, fmt.Errorf("failed to find pending tasks: %w", err)
	}

	var retryable []models.Task
	if err := s.db.Store().Find(&retryable,
		badgerhold.Where("Status").Eq(models.TaskStatusError).And("Attempts").Lt(maxRetries)); err != nil {
		return nil, fmt.Errorf("failed to find retryable tasks: %w", err)
	}

	candidates := append(pending, retryable...)
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]*models.Task, 0, len(candidates))
	for i := range candidates {
		task := candidates[i]

		// A corrupt payload must not poison the batch; the pipeline's
		// validation stage reports the missing fields and fails the task.
		if len(task.Payload) > 0 && !json.Valid(task.Payload) {
			s.logger.Warn().
				Str("task_id", task.ID).
				Msg("Task payload is not valid JSON, replacing with empty object")
			task.Payload = json.RawMessage("{}")
		}

		result = append(result, &task)
	}

	return result, nil
}

// MarkProcessing atomically transitions a task to processing inside a
// Badger transaction. The status check and write share the transaction, so
// concurrent claimers cannot both win: the loser sees either a processing
// status or a transaction conflict, both reported as claimed=false.
func (s *TaskStorage) MarkProcessing(ctx context.Context, taskID string, attempts int) (bool, error) {
	claimed := false

	err := s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
		var task models.Task
		if err := s.db.Store().TxGet(tx, taskID, &task); err != nil {
			if err == badgerhold.ErrNotFound {
				return nil // Task deleted out from under us, not an error
			}
			return err
		}

		if task.Status != models.TaskStatusPending && task.Status != models.TaskStatusError {
			return nil // Already claimed or terminal
		}

		task.Status = models.TaskStatusProcessing
		task.Attempts = attempts + 1
		task.UpdatedAt = time.Now()

		if err := s.db.Store().TxUpdate(tx, taskID, task); err != nil {
			return err
		}

		claimed = true
		return nil
	})

	if err != nil {
		if err == badgerdb.ErrConflict {
			// Another claimer committed first
			s.logger.Debug().Str("task_id", taskID).Msg("Lost claim race for task")
			return false, nil
		}
		return false, fmt.Errorf("failed to mark task processing: %w", err)
	}

	return claimed, nil
}

// UpdateStatus writes a task's status, attempt count, and error text.
// LastError is cleared on success and set on failure.
func (s *TaskStorage) UpdateStatus(ctx context.Context, taskID string, status models.TaskStatus, attempts int, errorMessage string) (bool, error) {
	var task models.Task
	if err := s.db.Store().Get(taskID, &task); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to get task: %w", err)
	}

	task.Status = status
	task.Attempts = attempts
	task.LastError = errorMessage
	task.UpdatedAt = time.Now()

	if err := s.db.Store().Update(taskID, task); err != nil {
		s.logger.Error().Err(err).Str("task_id", taskID).Msg("BadgerDB: Failed to update task status")
		return false, fmt.Errorf("failed to update task status: %w", err)
	}

	s.logger.Debug().
		Str("task_id", taskID).
		Str("status", string(status)).
		Int("attempts", attempts).
		Msg("Task status updated")
	return true, nil
}

// GetTask returns a task by ID.
func (s *TaskStorage) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	var task models.Task
	if err := s.db.Store().Get(taskID, &task); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("task not found: %s", taskID)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// CountByStatus returns the number of tasks in the given status.
func (s *TaskStorage) CountByStatus(ctx context.Context, status models.TaskStatus) (int, error) {
	count, err := s.db.Store().Count(&models.Task{}, badgerhold.Where("Status").Eq(status))
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return int(count), nil
}
