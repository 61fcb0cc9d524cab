package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes notification payloads to the log. It stands in for
// a real delivery transport (email, messenger gateway) until one is
// plugged in; the outbox keeps retry and dead-letter semantics either way.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(ctx context.Context, eventType, bookingID string, payload []byte) error {
	n.log.Info().
		Str("event_type", eventType).
		Str("booking_id", bookingID).
		RawJSON("payload", payload).
		Msg("notification dispatched")
	return nil
}
