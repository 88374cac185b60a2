// -----------------------------------------------------------------------
// Background Task - Durable task record for queue persistence
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"time"
)

// TaskStatus represents the lifecycle state of a background task.
type TaskStatus string

const (
	// TaskStatusPending means the task is waiting to be claimed by a worker.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusProcessing means exactly one worker has claimed the task.
	TaskStatusProcessing TaskStatus = "processing"
	// TaskStatusCompleted is terminal: the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusError means the task failed. It is re-claimable until the
	// retry budget is exhausted.
	TaskStatusError TaskStatus = "error"
	// TaskStatusSkip permanently excludes the task from claiming.
	TaskStatusSkip TaskStatus = "skip"
)

// TaskType identifies which pipeline processes a task.
type TaskType string

const (
	// TaskTypeGenerateContent is the content generation and publishing pipeline.
	TaskTypeGenerateContent TaskType = "generate_content"
)

// Task is the durable record for a queued unit of background work.
// The payload is stored as raw JSON and decoded per task type by the
// pipeline that processes it.
type Task struct {
	ID        string          `json:"id" badgerhold:"key"`
	Type      TaskType        `json:"task_type"`
	Payload   json.RawMessage `json:"payload"`
	Status    TaskStatus      `json:"status" badgerhold:"index"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// GenerationPayload is the decoded payload for generate_content tasks.
// All fields are required; a missing field makes the task terminally
// invalid before any external call is made.
type GenerationPayload struct {
	BriefID         string `json:"brief_id"`
	Prompt          string `json:"prompt"`
	TargetWordCount int    `json:"target_word_count"`
	Keyword         string `json:"keyword"`
	CallbackURL     string `json:"callback_url"`
}

// MissingFields returns the names of required payload fields that are unset.
func (p *GenerationPayload) MissingFields() []string {
	var missing []string
	if p.BriefID == "" {
		missing = append(missing, "brief_id")
	}
	if p.Prompt == "" {
		missing = append(missing, "prompt")
	}
	if p.TargetWordCount <= 0 {
		missing = append(missing, "target_word_count")
	}
	if p.Keyword == "" {
		missing = append(missing, "keyword")
	}
	if p.CallbackURL == "" {
		missing = append(missing, "callback_url")
	}
	return missing
}

// TaskOutcome aggregates the result of a pipeline run for a single task.
// PostID/PostURL/ImageID are populated on publish success; ErrorMessage
// carries the failure detail or a degraded-generation marker.
type TaskOutcome struct {
	Status       TaskStatus
	PostID       int
	PostURL      string
	ImageID      int
	ErrorMessage string
}

// Succeeded reports whether the outcome is terminal success.
func (o *TaskOutcome) Succeeded() bool {
	return o.Status == TaskStatusCompleted
}
