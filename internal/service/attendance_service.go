package service

import (
	"context"
	"fmt"
	"time"

	"unispace/internal/database"
	"unispace/internal/domain"
	"unispace/internal/events"
	"unispace/internal/metrics"
	"unispace/internal/models"
	"unispace/internal/policy"

	"github.com/rs/zerolog"
)

// ScanResult reports what a ticket scan did.
type ScanResult struct {
	Action     string            `json:"action"` // "check_in" or "check_out"
	Booking    *models.Booking   `json:"booking"`
	Attendance models.Attendance `json:"attendance,omitempty"`
}

// Stats is the dashboard aggregate.
type Stats struct {
	ByStatus     map[models.Status]int64     `json:"by_status"`
	ByAttendance map[models.Attendance]int64 `json:"by_attendance"`
}

type AttendanceService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	state    domain.RequestState
	policy   policy.Policy

	scanRateLimit  int
	scanRateWindow time.Duration

	logger *zerolog.Logger

	// now is replaced in tests; the server clock is authoritative for
	// every classification decision.
	now func() time.Time
}

func NewAttendanceService(repo domain.Repository, eventBus domain.EventPublisher, state domain.RequestState, p policy.Policy, scanRateLimit int, scanRateWindow time.Duration, logger *zerolog.Logger) *AttendanceService {
	if scanRateLimit <= 0 {
		scanRateLimit = models.ScanRateLimit
	}
	if scanRateWindow <= 0 {
		scanRateWindow = time.Duration(models.ScanRateWindow) * time.Second
	}
	return &AttendanceService{
		repo:           repo,
		eventBus:       eventBus,
		state:          state,
		policy:         p,
		scanRateLimit:  scanRateLimit,
		scanRateWindow: scanRateWindow,
		logger:         logger,
		now:            time.Now,
	}
}

// VerifyTicket resolves a scanned code and advances the booking. The
// first scan of an approved booking checks it in and classifies
// attendance from the server clock; the second scan checks it out. Any
// further scan fails with ErrAlreadyProcessed.
func (s *AttendanceService) VerifyTicket(ctx context.Context, code, operatorID string) (*ScanResult, error) {
	if s.state != nil && operatorID != "" {
		allowed, err := s.state.CheckRateLimit(ctx, operatorID, s.scanRateLimit, s.scanRateWindow)
		if err != nil {
			s.logger.Warn().Err(err).Str("operator_id", operatorID).Msg("scan rate limit check failed, allowing")
		} else if !allowed {
			metrics.IncTicketScan("rate_limited")
			return nil, ErrRateLimited
		}
	}

	booking, err := s.repo.GetBookingByTicketCode(ctx, code)
	if err != nil {
		metrics.IncTicketScan("invalid")
		return nil, err
	}

	at := s.now().UTC()

	switch booking.Status {
	case models.StatusApproved:
		attendance := s.policy.Classify(booking.StartTime, at)
		if err := s.repo.CheckInBooking(ctx, booking.ID, at, attendance); err != nil {
			metrics.IncTicketScan("error")
			return nil, err
		}

		booking, err = s.repo.GetBooking(ctx, booking.ID)
		if err != nil {
			return nil, err
		}

		metrics.IncTicketScan("check_in")
		s.publishEvent(ctx, events.EventBookingCheckedIn, booking)
		return &ScanResult{Action: "check_in", Booking: booking, Attendance: attendance}, nil

	case models.StatusCheckedIn:
		if err := s.repo.CheckOutBooking(ctx, booking.ID, at); err != nil {
			metrics.IncTicketScan("error")
			return nil, err
		}

		booking, err = s.repo.GetBooking(ctx, booking.ID)
		if err != nil {
			return nil, err
		}

		metrics.IncTicketScan("check_out")
		s.publishEvent(ctx, events.EventBookingCheckedOut, booking)
		return &ScanResult{Action: "check_out", Booking: booking, Attendance: booking.Attendance}, nil

	case models.StatusCompleted:
		metrics.IncTicketScan("already_processed")
		return nil, fmt.Errorf("%w: booking %s", database.ErrAlreadyProcessed, booking.ID)

	default:
		metrics.IncTicketScan("invalid_state")
		return nil, fmt.Errorf("%w: booking %s is %s", database.ErrInvalidState, booking.ID, booking.Status)
	}
}

// RunAttendanceSweep finalizes overdue bookings: approved bookings whose
// slot ended become completed no-shows, stale check-ins get closed at
// their scheduled end. Idempotent; a second run over the same state
// touches nothing.
func (s *AttendanceService) RunAttendanceSweep(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()

	noShows, err := s.repo.FinalizeNoShows(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("finalize no-shows: %w", err)
	}
	if noShows > 0 {
		metrics.AddSweepFinalized("no_show", noShows)
		s.logger.Info().Int64("count", noShows).Msg("sweep finalized no-shows")
	}

	closed, err := s.repo.CloseExpiredCheckIns(ctx, now)
	if err != nil {
		return noShows, fmt.Errorf("close expired check-ins: %w", err)
	}
	if closed > 0 {
		metrics.AddSweepFinalized("auto_checkout", closed)
		s.logger.Info().Int64("count", closed).Msg("sweep closed expired check-ins")
	}

	return noShows + closed, nil
}

func (s *AttendanceService) AttendanceLog(ctx context.Context, from, to time.Time, classification models.Attendance) ([]*models.Booking, error) {
	return s.repo.AttendanceLog(ctx, from.UTC(), to.UTC(), classification)
}

func (s *AttendanceService) Stats(ctx context.Context) (*Stats, error) {
	byStatus, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	byAttendance, err := s.repo.CountByAttendance(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{ByStatus: byStatus, ByAttendance: byAttendance}, nil
}

func (s *AttendanceService) publishEvent(ctx context.Context, eventType string, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.PublishJSON(eventType, events.Snapshot(booking, "scanner")); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}
