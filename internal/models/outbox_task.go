package models

import "time"

// OutboxTask is a queued notification delivery job. The engine only
// enqueues; an external transport consumes the payload.
type OutboxTask struct {
	ID          int64      `json:"id"`
	EventType   string     `json:"event_type"`
	BookingID   string     `json:"booking_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

const (
	OutboxStatusPending = "pending"
	OutboxStatusRetry   = "retry"
	OutboxStatusDone    = "done"
	OutboxStatusDead    = "dead"
)
