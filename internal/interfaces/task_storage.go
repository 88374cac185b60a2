package interfaces

import (
	"context"

	"github.com/pressgen/pressgen/internal/models"
)

// TaskStorage defines the persistence contract for background tasks.
type TaskStorage interface {
	// Enqueue persists a new pending task and returns its generated ID.
	Enqueue(ctx context.Context, taskType models.TaskType, payload []byte) (string, error)

	// ClaimBatch returns up to limit claimable tasks in FIFO order by
	// creation time. Claimable means pending, or error with attempts
	// remaining. Skip tasks are never returned.
	ClaimBatch(ctx context.Context, limit int, maxRetries int) ([]*models.Task, error)

	// MarkProcessing atomically transitions a task to processing and
	// increments its attempt counter. Returns false when the task no
	// longer exists or another claimer won the race.
	MarkProcessing(ctx context.Context, taskID string, attempts int) (bool, error)

	// UpdateStatus writes a task's status, attempt count, and error text.
	// Returns false when the task does not exist.
	UpdateStatus(ctx context.Context, taskID string, status models.TaskStatus, attempts int, errorMessage string) (bool, error)

	// GetTask returns a task by ID.
	GetTask(ctx context.Context, taskID string) (*models.Task, error)

	// CountByStatus returns the number of tasks in the given status.
	CountByStatus(ctx context.Context, status models.TaskStatus) (int, error)
}
