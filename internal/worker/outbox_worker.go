package worker

import (
	"context"
	"time"

	"unispace/internal/database"
	"unispace/internal/domain"
	"unispace/internal/models"

	"github.com/rs/zerolog"
)

// OutboxWorker drains the notification outbox and hands payloads to the
// external transport via the Notifier hook. Failed deliveries back off
// exponentially and dead-letter after MaxAttempts.
type OutboxWorker struct {
	db           *database.DB
	notifier     domain.Notifier
	retryPolicy  RetryPolicy
	pollInterval time.Duration
	batchSize    int
	log          zerolog.Logger
}

func NewOutboxWorker(db *database.DB, notifier domain.Notifier, retry RetryPolicy, pollInterval time.Duration, batchSize int, logger *zerolog.Logger) *OutboxWorker {
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = models.OutboxMaxAttempts
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 30 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 15 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = models.OutboxBatchSize
	}

	return &OutboxWorker{
		db:           db,
		notifier:     notifier,
		retryPolicy:  retry,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		log:          logger.With().Str("component", "outbox_worker").Logger(),
	}
}

// Start runs the polling loop until ctx is canceled.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.log.Info().Dur("poll_interval", w.pollInterval).Msg("outbox worker started")
	defer w.log.Info().Msg("outbox worker stopped")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes a single batch of due tasks.
func (w *OutboxWorker) RunOnce(ctx context.Context) int {
	tasks, err := w.db.GetPendingOutboxTasks(ctx, w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("fetch pending outbox tasks")
		return 0
	}

	processed := 0
	for i := range tasks {
		if ctx.Err() != nil {
			return processed
		}
		w.processTask(ctx, &tasks[i])
		processed++
	}
	return processed
}

func (w *OutboxWorker) processTask(ctx context.Context, task *models.OutboxTask) {
	err := w.notifier.Notify(ctx, task.EventType, task.BookingID, []byte(task.Payload))
	if err == nil {
		if err := w.db.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxStatusDone, "", nil); err != nil {
			w.log.Error().Err(err).Int64("task_id", task.ID).Msg("mark outbox task done")
		}
		return
	}

	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxAttempts {
		w.log.Error().Err(err).Int64("task_id", task.ID).Str("event_type", task.EventType).Msg("outbox task dead-lettered")
		if err := w.db.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxStatusDead, err.Error(), nil); err != nil {
			w.log.Error().Err(err).Int64("task_id", task.ID).Msg("mark outbox task dead")
		}
		return
	}

	next := time.Now().UTC().Add(w.retryPolicy.NextDelay(attempt))
	w.log.Warn().Err(err).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", next).Msg("outbox delivery failed, scheduling retry")
	if err := w.db.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxStatusRetry, err.Error(), &next); err != nil {
		w.log.Error().Err(err).Int64("task_id", task.ID).Msg("mark outbox task for retry")
	}
}
