package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"unispace/internal/database"
	"unispace/internal/domain"
	"unispace/internal/events"
	"unispace/internal/metrics"
	"unispace/internal/models"
	"unispace/internal/policy"
	"unispace/internal/ticket"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CreateBookingRequest carries a reservation request from any surface.
// IdempotencyKey is optional; when set, repeated submissions return the
// booking created by the first one.
type CreateBookingRequest struct {
	FacilityID     string    `json:"facility_id"`
	RequesterID    string    `json:"requester_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Purpose        string    `json:"purpose"`
	IdempotencyKey string    `json:"-"`
}

type BookingService struct {
	repo           domain.Repository
	eventBus       domain.EventPublisher
	state          domain.RequestState
	policy         policy.Policy
	idempotencyTTL time.Duration
	logger         *zerolog.Logger
}

func NewBookingService(repo domain.Repository, eventBus domain.EventPublisher, state domain.RequestState, p policy.Policy, idempotencyTTL time.Duration, logger *zerolog.Logger) *BookingService {
	if idempotencyTTL <= 0 {
		idempotencyTTL = time.Duration(models.DefaultIdempotencyTTL) * time.Second
	}
	return &BookingService{
		repo:           repo,
		eventBus:       eventBus,
		state:          state,
		policy:         p,
		idempotencyTTL: idempotencyTTL,
		logger:         logger,
	}
}

func (s *BookingService) ValidateInterval(iv models.Interval) error {
	if !iv.WellFormed() {
		return ErrInvalidInterval
	}
	if iv.Start.Before(time.Now()) {
		return ErrStartInPast
	}
	if !s.policy.WithinOperatingWindow(iv) {
		return ErrOutsideOperatingWindow
	}
	return nil
}

// CreateBooking validates the request, claims the idempotency key and
// inserts the booking in one transaction with the conflict check.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	iv := models.Interval{Start: req.StartTime, End: req.EndTime}
	if err := s.ValidateInterval(iv); err != nil {
		return nil, err
	}

	facility, err := s.repo.GetFacility(ctx, req.FacilityID)
	if err != nil {
		return nil, err
	}
	if !facility.IsActive {
		return nil, database.ErrFacilityInactive
	}

	id := uuid.NewString()

	if req.IdempotencyKey != "" && s.state != nil {
		existingID, claimed, err := s.state.ClaimIdempotencyKey(ctx, req.IdempotencyKey, id, s.idempotencyTTL)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", req.IdempotencyKey).Msg("idempotency claim failed, proceeding without")
		} else if !claimed {
			return s.repo.GetBooking(ctx, existingID)
		}
	}

	now := time.Now().UTC()
	booking := &models.Booking{
		ID:           id,
		FacilityID:   facility.ID,
		FacilityName: facility.Name,
		RequesterID:  req.RequesterID,
		StartTime:    req.StartTime.UTC(),
		EndTime:      req.EndTime.UTC(),
		Purpose:      req.Purpose,
		Status:       models.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateBookingWithLock(ctx, booking); err != nil {
		if errors.Is(err, database.ErrConflict) {
			metrics.IncBookingConflict()
		}
		return nil, err
	}

	metrics.IncBookingCreated()
	s.publishEvent(ctx, events.EventBookingCreated, booking, "requester")
	s.enqueueNotification(ctx, events.EventBookingCreated, booking)

	return booking, nil
}

// ApproveBooking mints a ticket and moves the booking pending→approved.
// The conflict re-check against other approved bookings happens inside
// the store transition; a collision on the ticket code retries with a
// fresh code.
func (s *BookingService) ApproveBooking(ctx context.Context, id, adminID string) (*models.Booking, error) {
	var err error
	for attempt := 0; attempt < models.TicketIssueRetries; attempt++ {
		code, codeErr := ticket.NewCode(time.Now())
		if codeErr != nil {
			return nil, fmt.Errorf("mint ticket code: %w", codeErr)
		}
		err = s.repo.ApproveBooking(ctx, id, adminID, code)
		if errors.Is(err, database.ErrTicketCodeTaken) {
			s.logger.Warn().Str("booking_id", id).Int("attempt", attempt+1).Msg("ticket code collision, regenerating")
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.EventBookingApproved, booking, "admin")
	s.enqueueNotification(ctx, events.EventBookingApproved, booking)

	return booking, nil
}

func (s *BookingService) RejectBooking(ctx context.Context, id, adminID, reason string) error {
	if err := s.repo.RejectBooking(ctx, id, adminID, reason); err != nil {
		return err
	}

	booking, err := s.repo.GetBooking(ctx, id)
	if err == nil {
		s.publishEvent(ctx, events.EventBookingRejected, booking, "admin")
		s.enqueueNotification(ctx, events.EventBookingRejected, booking)
	}

	return nil
}

func (s *BookingService) CancelBooking(ctx context.Context, id, requesterID string) error {
	if err := s.repo.CancelBooking(ctx, id, requesterID); err != nil {
		return err
	}

	booking, err := s.repo.GetBooking(ctx, id)
	if err == nil {
		s.publishEvent(ctx, events.EventBookingCanceled, booking, "requester")
		s.enqueueNotification(ctx, events.EventBookingCanceled, booking)
	}

	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) ListBookingsForFacility(ctx context.Context, facilityID string, from, to time.Time) ([]*models.Booking, error) {
	return s.repo.ListBookingsForFacility(ctx, facilityID, from, to)
}

func (s *BookingService) ListBookingsForRequester(ctx context.Context, requesterID string) ([]*models.Booking, error) {
	return s.repo.ListBookingsForRequester(ctx, requesterID)
}

// TicketQR renders the booking's ticket code as a PNG. Only approved or
// checked-in bookings carry a scannable ticket.
func (s *BookingService) TicketQR(ctx context.Context, id string) ([]byte, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.TicketCode == "" {
		return nil, database.ErrInvalidTicket
	}
	return ticket.QRPNG(booking.TicketCode)
}

func (s *BookingService) publishEvent(ctx context.Context, eventType string, booking *models.Booking, changedBy string) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.PublishJSON(eventType, events.Snapshot(booking, changedBy)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueNotification(ctx context.Context, eventType string, booking *models.Booking) {
	payload, err := events.Snapshot(booking, "").Marshal()
	if err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("notification payload marshal error")
		return
	}

	task := &models.OutboxTask{
		EventType: eventType,
		BookingID: booking.ID,
		Payload:   string(payload),
		Status:    models.OutboxStatusPending,
	}
	if err := s.repo.CreateOutboxTask(ctx, task); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Str("event_type", eventType).Msg("outbox enqueue error")
	}
}
