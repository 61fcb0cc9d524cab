package models

import (
	"math/rand"
	"testing"
	"time"
)

func TestIntervalOverlaps(t *testing.T) {
	base := time.Date(2030, 3, 12, 8, 0, 0, 0, time.UTC)
	at := func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"identical", Interval{at(0), at(60)}, Interval{at(0), at(60)}, true},
		{"contained", Interval{at(0), at(60)}, Interval{at(15), at(45)}, true},
		{"partial", Interval{at(0), at(60)}, Interval{at(30), at(90)}, true},
		{"back to back", Interval{at(0), at(60)}, Interval{at(60), at(120)}, false},
		{"disjoint", Interval{at(0), at(60)}, Interval{at(90), at(120)}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b); got != tc.want {
				t.Errorf("Overlaps(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
			if got := tc.b.Overlaps(tc.a); got != tc.want {
				t.Errorf("Overlaps is not symmetric for %s", tc.name)
			}
		})
	}
}

// Randomized intervals against the reference definition: two half-open
// intervals overlap iff max(start) < min(end).
func TestIntervalOverlapsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	base := time.Date(2030, 3, 12, 0, 0, 0, 0, time.UTC)

	randInterval := func() Interval {
		start := rng.Intn(24 * 60)
		length := 1 + rng.Intn(4*60)
		return Interval{
			Start: base.Add(time.Duration(start) * time.Minute),
			End:   base.Add(time.Duration(start+length) * time.Minute),
		}
	}

	for i := 0; i < 1000; i++ {
		a, b := randInterval(), randInterval()

		maxStart := a.Start
		if b.Start.After(maxStart) {
			maxStart = b.Start
		}
		minEnd := a.End
		if b.End.Before(minEnd) {
			minEnd = b.End
		}
		want := maxStart.Before(minEnd)

		if got := a.Overlaps(b); got != want {
			t.Fatalf("Overlaps(%v, %v) = %v, want %v", a, b, got, want)
		}
		if got := b.Overlaps(a); got != want {
			t.Fatalf("Overlaps(%v, %v) not symmetric", b, a)
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusApproved, StatusCheckedIn, StatusCompleted, StatusRejected, StatusCanceled} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if Status("unknown").Valid() {
		t.Errorf("expected unknown status to be invalid")
	}
}

func TestAttendanceValid(t *testing.T) {
	for _, a := range []Attendance{AttendanceOnTime, AttendanceLate, AttendanceNoShow} {
		if !a.Valid() {
			t.Errorf("expected %q to be valid", a)
		}
	}
	if Attendance("present").Valid() {
		t.Errorf("expected unknown classification to be invalid")
	}
}
