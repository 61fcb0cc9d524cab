package models

const (
	// TicketIssueRetries bounds re-generation attempts when a freshly
	// minted ticket code collides with the unique index.
	TicketIssueRetries = 3

	// OutboxBatchSize is how many outbox tasks a worker claims per poll.
	OutboxBatchSize = 50

	// OutboxMaxAttempts is the delivery attempt limit before dead-letter.
	OutboxMaxAttempts = 5

	// DefaultIdempotencyTTL is the lifetime of a create-booking
	// idempotency key, in seconds.
	DefaultIdempotencyTTL = 24 * 60 * 60

	// ScanRateLimit is the number of ticket scans allowed per operator
	// within ScanRateWindow seconds.
	ScanRateLimit  = 30
	ScanRateWindow = 60
)
