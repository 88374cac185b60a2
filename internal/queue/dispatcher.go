// -----------------------------------------------------------------------
// Dispatcher - Polls the task store and routes claimed tasks to pipelines
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/pressgen/pressgen/internal/interfaces"
	"github.com/pressgen/pressgen/internal/models"
	"github.com/ternarybob/arbor"
)

// minPollInterval is the floor for the poll sleep regardless of configuration.
const minPollInterval = 5 * time.Second

// Dispatcher is the single-threaded poll loop that claims tasks and drives
// them through their registered pipeline. One task is in flight at a time;
// API rate limits make queue throughput irrelevant.
type Dispatcher struct {
	storage      interfaces.TaskStorage
	notifier     interfaces.Notifier
	pipelines    map[models.TaskType]Pipeline
	logger       arbor.ILogger
	pollInterval time.Duration
	batchLimit   int
	maxRetries   int
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	running      bool
	mu           sync.Mutex
}

// NewDispatcher creates a dispatcher. Pipelines are registered separately
// before Start.
func NewDispatcher(storage interfaces.TaskStorage, notifier interfaces.Notifier, logger arbor.ILogger, pollInterval time.Duration, batchLimit, maxRetries int) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	if pollInterval < minPollInterval {
		pollInterval = minPollInterval
	}
	if batchLimit < 1 {
		batchLimit = 1
	}

	return &Dispatcher{
		storage:      storage,
		notifier:     notifier,
		pipelines:    make(map[models.TaskType]Pipeline),
		logger:       logger,
		pollInterval: pollInterval,
		batchLimit:   batchLimit,
		maxRetries:   maxRetries,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// RegisterPipeline registers a pipeline for its task type.
func (d *Dispatcher) RegisterPipeline(p Pipeline) {
	d.pipelines[p.Type()] = p
	d.logger.Debug().
		Str("task_type", string(p.Type())).
		Msg("Pipeline registered")
}

// Start starts the dispatcher poll loop.
// This should be called AFTER all services are fully initialized.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		d.logger.Warn().Msg("Dispatcher already running")
		return
	}

	d.running = true
	d.logger.Info().
		Dur("poll_interval", d.pollInterval).
		Int("batch_limit", d.batchLimit).
		Int("max_task_retries", d.maxRetries).
		Msg("Starting dispatcher")

	d.wg.Add(1)
	go d.pollLoop()
}

// Stop stops the dispatcher gracefully, waiting for the current cycle to
// finish. An in-flight task is never cancelled mid-pipeline.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info().Msg("Stopping dispatcher...")
	d.cancel()
	d.wg.Wait()
	d.logger.Info().Msg("Dispatcher stopped")
}

// pollLoop claims and processes tasks until the context is cancelled.
func (d *Dispatcher) pollLoop() {
	defer d.wg.Done()

	// Panic recovery wrapper: without it, a panic in claim or storage code
	// would kill the loop silently and strand tasks in processing.
	defer func() {
		if r := recover(); r != nil {
			d.logger.Fatal().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", stackTrace()).
				Msg("FATAL: Dispatcher loop panicked")
		}
	}()

	d.logger.Debug().Msg("Dispatcher poll loop started")

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Debug().Msg("Dispatcher poll loop stopping")
			return
		default:
			d.runCycle()

			select {
			case <-d.ctx.Done():
				return
			case <-time.After(jitteredInterval(d.pollInterval)):
			}
		}
	}
}

// jitteredInterval spreads polls by ±10% so multiple processes sharing a
// store do not synchronize their claim attempts.
func jitteredInterval(interval time.Duration) time.Duration {
	jittered := time.Duration(float64(interval) * (0.9 + 0.2*rand.Float64()))
	if jittered < minPollInterval {
		jittered = minPollInterval
	}
	return jittered
}

// runCycle claims one batch and processes each claimed task to a terminal
// state.
func (d *Dispatcher) runCycle() {
	tasks, err := d.storage.ClaimBatch(d.ctx, d.batchLimit, d.maxRetries)
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to claim task batch")
		return
	}
	if len(tasks) == 0 {
		return
	}

	for _, task := range tasks {
		claimed, err := d.storage.MarkProcessing(d.ctx, task.ID, task.Attempts)
		if err != nil {
			d.logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to mark task processing")
			continue
		}
		if !claimed {
			// Another claimer won or the task is gone; silent skip
			continue
		}

		d.processTask(task, task.Attempts+1)
	}
}

// processTask runs the pipeline, delivers the callback, and reconciles the
// final status. The final UpdateStatus is unconditional so a task is never
// left in processing.
func (d *Dispatcher) processTask(task *models.Task, attempts int) {
	startTime := time.Now()
	d.logger.Info().
		Str("task_id", task.ID).
		Str("task_type", string(task.Type)).
		Int("attempt", attempts).
		Msg("Processing task")

	// In-flight work finishes even during shutdown; only the poll loop
	// observes the dispatcher context.
	ctx := context.Background()

	outcome, target := d.runPipeline(ctx, task)

	if target != nil {
		if err := d.notifier.Notify(ctx, target.CallbackURL, interfaces.CallbackNotification{
			TaskID:           task.ID,
			BriefID:          target.BriefID,
			Status:           callbackStatus(outcome.Status),
			GeneratedPostID:  outcome.PostID,
			GeneratedPostURL: outcome.PostURL,
			FeaturedImageID:  outcome.ImageID,
			ErrorMessage:     outcome.ErrorMessage,
		}); err != nil {
			d.logger.Error().Err(err).Str("task_id", task.ID).Msg("Callback delivery failed")
			outcome.ErrorMessage = fmt.Sprintf("Processing status was '%s', but callback failed: %v",
				callbackStatus(outcome.Status), err)
			outcome.Status = models.TaskStatusError
		}
	}

	if _, err := d.storage.UpdateStatus(d.ctx, task.ID, outcome.Status, attempts, outcome.ErrorMessage); err != nil {
		d.logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to reconcile task status")
	}

	d.logger.Info().
		Str("task_id", task.ID).
		Str("status", string(outcome.Status)).
		Dur("duration", time.Since(startTime)).
		Msg("Task finished")
}

// runPipeline resolves and runs the task's pipeline behind a panic
// boundary. A panic or unknown type becomes a terminal error outcome.
func (d *Dispatcher) runPipeline(ctx context.Context, task *models.Task) (outcome models.TaskOutcome, target *CallbackTarget) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", stackTrace()).
				Str("task_id", task.ID).
				Msg("Recovered from panic in task processing")
			outcome = models.TaskOutcome{
				Status:       models.TaskStatusError,
				ErrorMessage: fmt.Sprintf("Task panicked: %v", r),
			}
			target = nil
		}
	}()

	pipeline, ok := d.pipelines[task.Type]
	if !ok {
		return models.TaskOutcome{
			Status:       models.TaskStatusError,
			ErrorMessage: fmt.Sprintf("Unknown task type received: %s", task.Type),
		}, nil
	}

	return pipeline.Run(ctx, task)
}

// callbackStatus maps the task's terminal status to the callback contract.
func callbackStatus(status models.TaskStatus) string {
	if status == models.TaskStatusCompleted {
		return "success"
	}
	return "error"
}

// stackTrace returns a formatted stack trace for panic debugging
func stackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
