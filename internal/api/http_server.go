package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"unispace/internal/config"
	"unispace/internal/metrics"
	"unispace/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the engine's HTTP/JSON surface for the UI, admin
// tools and schedulers.
type HTTPServer struct {
	cfg        config.APIConfig
	bookings   *service.BookingService
	attendance *service.AttendanceService
	facilities *service.FacilityService
	server     *http.Server
	auth       *HTTPAuth
	log        zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, bookings *service.BookingService, attendance *service.AttendanceService, facilities *service.FacilityService, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:        cfg,
		bookings:   bookings,
		attendance: attendance,
		facilities: facilities,
		log:        logger.With().Str("component", "http_api").Logger(),
	}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("GET /api/v1/bookings/{id}", srv.handleGetBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/approve", srv.handleApproveBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/reject", srv.handleRejectBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", srv.handleCancelBooking)
	mux.HandleFunc("GET /api/v1/bookings/{id}/ticket.png", srv.handleTicketQR)
	mux.HandleFunc("POST /api/v1/scan", srv.handleScan)
	mux.HandleFunc("GET /api/v1/facilities", srv.handleListFacilities)
	mux.HandleFunc("POST /api/v1/facilities", srv.handleCreateFacility)
	mux.HandleFunc("PATCH /api/v1/facilities/{id}/status", srv.handleFacilityStatus)
	mux.HandleFunc("GET /api/v1/facilities/{id}/bookings", srv.handleFacilitySchedule)
	mux.HandleFunc("GET /api/v1/requesters/{id}/bookings", srv.handleRequesterBookings)
	mux.HandleFunc("GET /api/v1/attendance", srv.handleAttendanceLog)
	mux.HandleFunc("GET /api/v1/attendance/export", srv.handleAttendanceExport)
	mux.HandleFunc("GET /api/v1/stats", srv.handleStats)
	mux.HandleFunc("POST /api/v1/sweep", srv.handleSweep)
	mux.HandleFunc("GET /healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the fully wrapped handler, used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.URL.Path)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
