package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper finalizes overdue bookings; implemented by the attendance
// service.
type Sweeper interface {
	RunAttendanceSweep(ctx context.Context, now time.Time) (int64, error)
}

// SweepWorker periodically finalizes no-shows and stale check-ins. The
// sweep itself is idempotent, so overlapping runs and restarts are
// harmless.
type SweepWorker struct {
	sweeper  Sweeper
	interval time.Duration
	log      zerolog.Logger
}

func NewSweepWorker(sweeper Sweeper, interval time.Duration, logger *zerolog.Logger) *SweepWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SweepWorker{
		sweeper:  sweeper,
		interval: interval,
		log:      logger.With().Str("component", "sweep_worker").Logger(),
	}
}

// Start runs the sweep loop until ctx is canceled. The first sweep runs
// immediately.
func (w *SweepWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("sweep worker started")
	defer w.log.Info().Msg("sweep worker stopped")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		n, err := w.sweeper.RunAttendanceSweep(ctx, time.Now())
		if err != nil {
			w.log.Error().Err(err).Msg("attendance sweep failed")
		} else if n > 0 {
			w.log.Info().Int64("finalized", n).Msg("attendance sweep finalized bookings")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
