package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "unispace",
			Name:      "bookings_created_total",
			Help:      "Bookings accepted into the pending state.",
		},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "unispace",
			Name:      "booking_conflicts_total",
			Help:      "Booking requests rejected for interval overlap.",
		},
	)

	ticketScans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unispace",
			Name:      "ticket_scans_total",
			Help:      "Ticket scans by outcome.",
		},
		[]string{"result"},
	)

	sweepFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unispace",
			Name:      "sweep_finalized_total",
			Help:      "Bookings finalized by the attendance sweep.",
		},
		[]string{"outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unispace",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingsCreated, bookingConflicts, ticketScans, sweepFinalized, httpRequests)
	})
}

// IncBookingCreated counts a successful booking creation.
func IncBookingCreated() {
	bookingsCreated.Inc()
}

// IncBookingConflict counts a creation rejected with a conflict.
func IncBookingConflict() {
	bookingConflicts.Inc()
}

// IncTicketScan counts a scan by its outcome label
// (check_in, check_out, invalid, already_processed, rate_limited).
func IncTicketScan(result string) {
	ticketScans.WithLabelValues(result).Inc()
}

// AddSweepFinalized counts bookings the sweep closed per outcome.
func AddSweepFinalized(outcome string, n int64) {
	sweepFinalized.WithLabelValues(outcome).Add(float64(n))
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
