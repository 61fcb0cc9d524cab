package domain

import (
	"context"
	"time"

	"unispace/internal/models"
)

// Repository is the durable store seam the services depend on.
type Repository interface {
	CreateFacility(ctx context.Context, f *models.Facility) error
	GetFacility(ctx context.Context, id string) (*models.Facility, error)
	ListFacilities(ctx context.Context, activeOnly bool) ([]*models.Facility, error)
	UpdateFacility(ctx context.Context, f *models.Facility) error
	SetFacilityActive(ctx context.Context, id string, active bool) error

	FindConflict(ctx context.Context, facilityID string, iv models.Interval) (string, error)
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetBookingByTicketCode(ctx context.Context, code string) (*models.Booking, error)
	ApproveBooking(ctx context.Context, id, adminID, ticketCode string) error
	RejectBooking(ctx context.Context, id, adminID, reason string) error
	CancelBooking(ctx context.Context, id, requesterID string) error
	CheckInBooking(ctx context.Context, id string, at time.Time, attendance models.Attendance) error
	CheckOutBooking(ctx context.Context, id string, at time.Time) error
	ListBookingsForFacility(ctx context.Context, facilityID string, from, to time.Time) ([]*models.Booking, error)
	ListBookingsForRequester(ctx context.Context, requesterID string) ([]*models.Booking, error)
	FinalizeNoShows(ctx context.Context, now time.Time) (int64, error)
	CloseExpiredCheckIns(ctx context.Context, now time.Time) (int64, error)
	AttendanceLog(ctx context.Context, from, to time.Time, classification models.Attendance) ([]*models.Booking, error)
	CountByStatus(ctx context.Context) (map[models.Status]int64, error)
	CountByAttendance(ctx context.Context) (map[models.Attendance]int64, error)

	CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error
}

// EventPublisher fans a domain event out to in-process consumers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// RequestState holds short-lived request bookkeeping: idempotency keys
// for booking creation and scan-operator rate limits.
type RequestState interface {
	ClaimIdempotencyKey(ctx context.Context, key, bookingID string, ttl time.Duration) (existingID string, claimed bool, err error)
	CheckRateLimit(ctx context.Context, operatorID string, limit int, window time.Duration) (bool, error)
}

// Notifier delivers a finalized notification payload. The transport
// (WhatsApp, OTP gateway, email) lives outside the engine.
type Notifier interface {
	Notify(ctx context.Context, eventType, bookingID string, payload []byte) error
}
