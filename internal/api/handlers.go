package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"unispace/internal/database"
	"unispace/internal/export"
	"unispace/internal/models"
	"unispace/internal/service"
)

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")

	if req.FacilityID == "" || req.RequesterID == "" {
		writeError(w, http.StatusBadRequest, "facility_id and requester_id are required")
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.bookings.GetBooking(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

type decisionRequest struct {
	AdminID string `json:"admin_id"`
	Reason  string `json:"reason,omitempty"`
}

func (s *HTTPServer) handleApproveBooking(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AdminID == "" {
		writeError(w, http.StatusBadRequest, "admin_id is required")
		return
	}
	booking, err := s.bookings.ApproveBooking(r.Context(), r.PathValue("id"), req.AdminID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleRejectBooking(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AdminID == "" {
		writeError(w, http.StatusBadRequest, "admin_id is required")
		return
	}
	id := r.PathValue("id")
	if err := s.bookings.RejectBooking(r.Context(), id, req.AdminID, req.Reason); err != nil {
		s.writeServiceError(w, err)
		return
	}
	booking, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequesterID string `json:"requester_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RequesterID == "" {
		writeError(w, http.StatusBadRequest, "requester_id is required")
		return
	}
	id := r.PathValue("id")
	if err := s.bookings.CancelBooking(r.Context(), id, req.RequesterID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	booking, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleTicketQR(w http.ResponseWriter, r *http.Request) {
	png, err := s.bookings.TicketQR(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *HTTPServer) handleScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code       string `json:"code"`
		OperatorID string `json:"operator_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" || req.OperatorID == "" {
		writeError(w, http.StatusBadRequest, "code and operator_id are required")
		return
	}
	result, err := s.attendance.VerifyTicket(r.Context(), req.Code, req.OperatorID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleListFacilities(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	facilities, err := s.facilities.ListFacilities(r.Context(), activeOnly)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, facilities)
}

func (s *HTTPServer) handleCreateFacility(w http.ResponseWriter, r *http.Request) {
	var facility models.Facility
	if err := json.NewDecoder(r.Body).Decode(&facility); err != nil || facility.Name == "" {
		writeError(w, http.StatusBadRequest, "facility name is required")
		return
	}
	if err := s.facilities.CreateFacility(r.Context(), &facility); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, facility)
}

func (s *HTTPServer) handleFacilityStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		writeError(w, http.StatusBadRequest, "active is required")
		return
	}
	id := r.PathValue("id")
	if err := s.facilities.SetFacilityActive(r.Context(), id, *req.Active); err != nil {
		s.writeServiceError(w, err)
		return
	}
	facility, err := s.facilities.GetFacility(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, facility)
}

func (s *HTTPServer) handleFacilitySchedule(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r, time.Now().UTC(), 7*24*time.Hour)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bookings, err := s.bookings.ListBookingsForFacility(r.Context(), r.PathValue("id"), from, to)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (s *HTTPServer) handleRequesterBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.bookings.ListBookingsForRequester(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (s *HTTPServer) handleAttendanceLog(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r, time.Now().UTC().Add(-7*24*time.Hour), 7*24*time.Hour)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	classification := models.Attendance(r.URL.Query().Get("classification"))
	if classification != models.AttendanceUnset && !classification.Valid() {
		writeError(w, http.StatusBadRequest, "unknown classification")
		return
	}
	bookings, err := s.attendance.AttendanceLog(r.Context(), from, to, classification)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (s *HTTPServer) handleAttendanceExport(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r, time.Now().UTC().Add(-7*24*time.Hour), 7*24*time.Hour)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bookings, err := s.attendance.AttendanceLog(r.Context(), from, to, models.AttendanceUnset)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	buf, err := export.AttendanceXLSX(bookings, from, to)
	if err != nil {
		s.log.Error().Err(err).Msg("attendance export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(from, to)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.attendance.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *HTTPServer) handleSweep(w http.ResponseWriter, r *http.Request) {
	finalized, err := s.attendance.RunAttendanceSweep(r.Context(), time.Now().UTC())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"finalized": finalized})
}

// parseRange reads optional from/to RFC 3339 query parameters, falling
// back to [def, def+span).
func parseRange(r *http.Request, def time.Time, span time.Duration) (time.Time, time.Time, error) {
	from, to := def, def.Add(span)
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from: %v", err)
		}
		to = from.Add(span)
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to: %v", err)
		}
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to must be after from")
	}
	return from.UTC(), to.UTC(), nil
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, database.ErrInvalidTicket):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrConflict), errors.Is(err, database.ErrStaleConflict),
		errors.Is(err, database.ErrInvalidState), errors.Is(err, database.ErrAlreadyProcessed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrNotRequester):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, database.ErrFacilityInactive),
		errors.Is(err, service.ErrInvalidInterval),
		errors.Is(err, service.ErrOutsideOperatingWindow),
		errors.Is(err, service.ErrStartInPast):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		s.log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
