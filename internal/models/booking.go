package models

import "time"

// Status is the canonical booking lifecycle state. Callers must never
// reconstruct it from flags; the engine exposes it directly.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCheckedIn Status = "checked_in"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusCanceled  Status = "canceled"
)

// IsTerminal reports whether the booking can no longer change state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCanceled:
		return true
	}
	return false
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCheckedIn, StatusCompleted, StatusRejected, StatusCanceled:
		return true
	}
	return false
}

// Attendance is the final classification of a booking's physical fulfillment.
type Attendance string

const (
	AttendanceUnset  Attendance = ""
	AttendanceOnTime Attendance = "on_time"
	AttendanceLate   Attendance = "late"
	AttendanceNoShow Attendance = "no_show"
)

func (a Attendance) Valid() bool {
	switch a {
	case AttendanceOnTime, AttendanceLate, AttendanceNoShow:
		return true
	}
	return false
}

type Booking struct {
	ID              string     `json:"id"`
	FacilityID      string     `json:"facility_id"`
	FacilityName    string     `json:"facility_name,omitempty"`
	RequesterID     string     `json:"requester_id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	Purpose         string     `json:"purpose"`
	Status          Status     `json:"status"`
	DecidedBy       string     `json:"decided_by,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	TicketCode      string     `json:"ticket_code,omitempty"`
	CheckedInAt     *time.Time `json:"checked_in_at,omitempty"`
	CheckedOutAt    *time.Time `json:"checked_out_at,omitempty"`
	ActualEndTime   *time.Time `json:"actual_end_time,omitempty"`
	Attendance      Attendance `json:"attendance,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Interval is the requested [Start, End) time span of a booking.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WellFormed reports whether Start strictly precedes End.
func (iv Interval) WellFormed() bool {
	return iv.Start.Before(iv.End)
}

// Overlaps uses half-open semantics: back-to-back intervals sharing a
// boundary do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Interval returns the booking's scheduled span.
func (b *Booking) Interval() Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}
