package database

import "errors"

var (
	// ErrNotFound is returned when a facility or booking does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned at creation time when the requested
	// interval overlaps a pending or approved booking. Recoverable: the
	// caller may pick another slot.
	ErrConflict = errors.New("interval conflicts with an existing booking")

	// ErrStaleConflict is returned when an approval is invalidated by a
	// competing booking approved first. The caller must re-fetch.
	ErrStaleConflict = errors.New("approval invalidated by a conflicting booking")

	// ErrInvalidState is returned when a transition is attempted from a
	// state that does not allow it.
	ErrInvalidState = errors.New("illegal booking state transition")

	// ErrInvalidTicket is returned when a scanned code is not bound to
	// any actionable booking.
	ErrInvalidTicket = errors.New("ticket code not recognized")

	// ErrAlreadyProcessed is returned when a ticket has already been
	// redeemed for both check-in and check-out.
	ErrAlreadyProcessed = errors.New("ticket already fully redeemed")

	// ErrFacilityInactive is returned when a new booking targets a
	// deactivated facility.
	ErrFacilityInactive = errors.New("facility is not active")

	// ErrTicketCodeTaken is returned on a ticket code unique index
	// collision; the issuer retries with a fresh code.
	ErrTicketCodeTaken = errors.New("ticket code already in use")

	// ErrNotRequester is returned when a cancellation is attempted by
	// someone other than the booking's requester.
	ErrNotRequester = errors.New("booking belongs to another requester")
)
