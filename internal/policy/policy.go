package policy

import (
	"fmt"
	"time"

	"unispace/internal/models"
)

const (
	DefaultOpenHour  = 8
	DefaultCloseHour = 16
)

// Policy holds the operating window and lateness thresholds used for
// booking validation and attendance classification.
type Policy struct {
	// OpenHour and CloseHour bound the daily operating window. A booking
	// interval must lie fully within [OpenHour:00, CloseHour:00) of a
	// single day.
	OpenHour  int
	CloseHour int

	// LateThreshold is how far past the scheduled start a check-in may
	// land and still classify as on_time. Zero means on_time only at or
	// before the scheduled start.
	LateThreshold time.Duration

	// CheckInGrace is how early before the scheduled start an operator
	// may expect attendees to scan. It is advisory for schedule display;
	// a first scan on an approved ticket always performs check-in.
	CheckInGrace time.Duration
}

// Default returns the stock campus policy: 08:00-16:00, strict lateness.
func Default() Policy {
	return Policy{
		OpenHour:  DefaultOpenHour,
		CloseHour: DefaultCloseHour,
	}
}

// Normalize fills zero hours with defaults and rejects inverted windows.
func (p Policy) Normalize() (Policy, error) {
	if p.OpenHour == 0 && p.CloseHour == 0 {
		p.OpenHour = DefaultOpenHour
		p.CloseHour = DefaultCloseHour
	}
	if p.OpenHour < 0 || p.CloseHour > 24 || p.OpenHour >= p.CloseHour {
		return p, fmt.Errorf("invalid operating window %02d:00-%02d:00", p.OpenHour, p.CloseHour)
	}
	if p.LateThreshold < 0 {
		return p, fmt.Errorf("late threshold must not be negative")
	}
	return p, nil
}

// WithinOperatingWindow reports whether the interval is well-formed and
// fully contained in the operating hours of its starting day.
func (p Policy) WithinOperatingWindow(iv models.Interval) bool {
	if !iv.WellFormed() {
		return false
	}

	day := iv.Start
	open := time.Date(day.Year(), day.Month(), day.Day(), p.OpenHour, 0, 0, 0, day.Location())
	close := time.Date(day.Year(), day.Month(), day.Day(), p.CloseHour, 0, 0, 0, day.Location())

	return !iv.Start.Before(open) && !iv.End.After(close)
}

// Classify computes the check-in outcome. It is pure: the same inputs
// always yield the same classification. The on_time boundary is
// inclusive at scheduledStart plus the late threshold.
func (p Policy) Classify(scheduledStart, checkIn time.Time) models.Attendance {
	if checkIn.After(scheduledStart.Add(p.LateThreshold)) {
		return models.AttendanceLate
	}
	return models.AttendanceOnTime
}
