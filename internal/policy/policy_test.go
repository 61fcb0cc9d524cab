package policy

import (
	"math/rand"
	"testing"
	"time"

	"unispace/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func TestWithinOperatingWindow(t *testing.T) {
	p := Default()

	tests := []struct {
		name     string
		interval models.Interval
		want     bool
	}{
		{"inside window", models.Interval{Start: day(9, 0), End: day(10, 0)}, true},
		{"exact window", models.Interval{Start: day(8, 0), End: day(16, 0)}, true},
		{"before open", models.Interval{Start: day(7, 30), End: day(9, 0)}, false},
		{"past close", models.Interval{Start: day(15, 0), End: day(16, 30)}, false},
		{"inverted", models.Interval{Start: day(10, 0), End: day(9, 0)}, false},
		{"zero length", models.Interval{Start: day(9, 0), End: day(9, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.WithinOperatingWindow(tt.interval))
		})
	}
}

func TestClassifyBoundaryInclusive(t *testing.T) {
	p := Default()
	start := day(9, 0)

	assert.Equal(t, models.AttendanceOnTime, p.Classify(start, start.Add(-10*time.Minute)))
	// Exactly at the scheduled start is still on time.
	assert.Equal(t, models.AttendanceOnTime, p.Classify(start, start))
	assert.Equal(t, models.AttendanceLate, p.Classify(start, start.Add(time.Second)))
	assert.Equal(t, models.AttendanceLate, p.Classify(start, start.Add(5*time.Minute)))
}

func TestClassifyWithThreshold(t *testing.T) {
	p := Default()
	p.LateThreshold = 5 * time.Minute
	start := day(9, 0)

	assert.Equal(t, models.AttendanceOnTime, p.Classify(start, start.Add(5*time.Minute)))
	assert.Equal(t, models.AttendanceLate, p.Classify(start, start.Add(5*time.Minute+time.Second)))
}

func TestClassifyDeterministic(t *testing.T) {
	p := Default()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		start := day(8, 0).Add(time.Duration(rng.Intn(8*3600)) * time.Second)
		checkIn := start.Add(time.Duration(rng.Intn(7200)-3600) * time.Second)

		first := p.Classify(start, checkIn)
		for j := 0; j < 3; j++ {
			assert.Equal(t, first, p.Classify(start, checkIn))
		}
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	a := models.Interval{Start: day(9, 0), End: day(10, 0)}

	assert.True(t, a.Overlaps(models.Interval{Start: day(9, 30), End: day(10, 30)}))
	assert.True(t, a.Overlaps(models.Interval{Start: day(8, 0), End: day(9, 1)}))
	assert.True(t, a.Overlaps(a))
	// Back-to-back at the shared boundary is not a conflict.
	assert.False(t, a.Overlaps(models.Interval{Start: day(10, 0), End: day(11, 0)}))
	assert.False(t, a.Overlaps(models.Interval{Start: day(8, 0), End: day(9, 0)}))
}

func TestOverlapsRandomizedSymmetry(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := day(8, 0)

	for i := 0; i < 2000; i++ {
		a := randomInterval(rng, base)
		b := randomInterval(rng, base)

		// Overlap must be symmetric and must agree with the half-open
		// definition computed directly.
		want := a.Start.Before(b.End) && b.Start.Before(a.End)
		assert.Equal(t, want, a.Overlaps(b))
		assert.Equal(t, want, b.Overlaps(a))
	}
}

func randomInterval(rng *rand.Rand, base time.Time) models.Interval {
	start := base.Add(time.Duration(rng.Intn(7*3600)) * time.Second)
	end := start.Add(time.Duration(1+rng.Intn(3600)) * time.Second)
	return models.Interval{Start: start, End: end}
}

func TestNormalize(t *testing.T) {
	p, err := (Policy{}).Normalize()
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenHour, p.OpenHour)
	assert.Equal(t, DefaultCloseHour, p.CloseHour)

	_, err = (Policy{OpenHour: 16, CloseHour: 8}).Normalize()
	assert.Error(t, err)

	_, err = (Policy{OpenHour: 8, CloseHour: 16, LateThreshold: -time.Minute}).Normalize()
	assert.Error(t, err)
}
