package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"unispace/internal/config"
	"unispace/internal/database"
	"unispace/internal/events"
	"unispace/internal/logging"
	"unispace/internal/models"
	"unispace/internal/policy"
	"unispace/internal/repository"
	"unispace/internal/service"
)

func newTestServer(t *testing.T, cfg config.APIConfig) (*httptest.Server, *database.DB) {
	t.Helper()

	nop := logging.Nop()
	db, err := database.NewDB(":memory:", nop)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bus := events.NewEventBus()
	state := repository.NewMemoryRequestState()
	pol := policy.Default()

	bookings := service.NewBookingService(db, bus, state, pol, time.Hour, nop)
	attendance := service.NewAttendanceService(db, bus, state, pol, 100, time.Minute, nop)
	facilities := service.NewFacilityService(db, nop)

	server := NewHTTPServer(cfg, bookings, attendance, facilities, nop)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, db
}

func openConfig() config.APIConfig {
	return config.APIConfig{Port: 0}
}

func createFacility(t *testing.T, ts *httptest.Server, name string) models.Facility {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"capacity":4}`, name)
	resp, err := http.Post(ts.URL+"/api/v1/facilities", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("create facility: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create facility: unexpected status %d", resp.StatusCode)
	}
	var facility models.Facility
	if err := json.NewDecoder(resp.Body).Decode(&facility); err != nil {
		t.Fatalf("decode facility: %v", err)
	}
	return facility
}

// slot returns a window one week out at the given UTC hour, inside the
// default operating hours.
func slot(hour int) (time.Time, time.Time) {
	day := time.Now().UTC().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	start := day.Add(time.Duration(hour) * time.Hour)
	return start, start.Add(time.Hour)
}

func postJSON(t *testing.T, url string, payload any, headers map[string]string) *http.Response {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func createBooking(t *testing.T, ts *httptest.Server, facilityID string, hour int) models.Booking {
	t.Helper()
	start, end := slot(hour)
	resp := postJSON(t, ts.URL+"/api/v1/bookings", map[string]any{
		"facility_id":  facilityID,
		"requester_id": "student-1",
		"start_time":   start,
		"end_time":     end,
		"purpose":      "seminar",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("create booking: status %d, body %s", resp.StatusCode, raw)
	}
	var booking models.Booking
	if err := json.NewDecoder(resp.Body).Decode(&booking); err != nil {
		t.Fatalf("decode booking: %v", err)
	}
	return booking
}

func approveBooking(t *testing.T, ts *httptest.Server, id string) models.Booking {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/v1/bookings/"+id+"/approve", map[string]string{"admin_id": "admin-1"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve booking: unexpected status %d", resp.StatusCode)
	}
	var booking models.Booking
	if err := json.NewDecoder(resp.Body).Decode(&booking); err != nil {
		t.Fatalf("decode booking: %v", err)
	}
	return booking
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t, openConfig())
	facility := createFacility(t, ts, "Lecture Hall")

	booking := createBooking(t, ts, facility.ID, 10)
	if booking.Status != models.StatusPending {
		t.Fatalf("expected pending booking, got %s", booking.Status)
	}

	approved := approveBooking(t, ts, booking.ID)
	if approved.Status != models.StatusApproved {
		t.Fatalf("expected approved booking, got %s", approved.Status)
	}
	if approved.TicketCode == "" {
		t.Fatalf("expected a ticket code after approval")
	}

	resp, err := http.Get(ts.URL + "/api/v1/bookings/" + booking.ID)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get booking: unexpected status %d", resp.StatusCode)
	}
}

func TestCreateBookingConflict(t *testing.T) {
	ts, _ := newTestServer(t, openConfig())
	facility := createFacility(t, ts, "Lab")

	createBooking(t, ts, facility.ID, 10)

	start, end := slot(10)
	resp := postJSON(t, ts.URL+"/api/v1/bookings", map[string]any{
		"facility_id":  facility.ID,
		"requester_id": "student-2",
		"start_time":   start.Add(30 * time.Minute),
		"end_time":     end.Add(30 * time.Minute),
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for overlapping booking, got %d", resp.StatusCode)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	ts, _ := newTestServer(t, openConfig())
	facility := createFacility(t, ts, "Studio")

	start, _ := slot(10)
	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{
			name: "missing requester",
			body: map[string]any{"facility_id": facility.ID, "start_time": start, "end_time": start.Add(time.Hour)},
			want: http.StatusBadRequest,
		},
		{
			name: "inverted interval",
			body: map[string]any{"facility_id": facility.ID, "requester_id": "s1", "start_time": start, "end_time": start.Add(-time.Hour)},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "outside operating window",
			body: map[string]any{"facility_id": facility.ID, "requester_id": "s1", "start_time": start.Add(12 * time.Hour), "end_time": start.Add(13 * time.Hour)},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown facility",
			body: map[string]any{"facility_id": "nope", "requester_id": "s1", "start_time": start, "end_time": start.Add(time.Hour)},
			want: http.StatusNotFound,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/v1/bookings", tc.body, nil)
			defer resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestCreateBookingIdempotencyHeader(t *testing.T) {
	ts, _ := newTestServer(t, openConfig())
	facility := createFacility(t, ts, "Gym")

	start, end := slot(9)
	payload := map[string]any{
		"facility_id":  facility.ID,
		"requester_id": "student-1",
		"start_time":   start,
		"end_time":     end,
	}
	headers := map[string]string{"Idempotency-Key": "req-42"}

	first := postJSON(t, ts.URL+"/api/v1/bookings", payload, headers)
	defer first.Body.Close()
	var a models.Booking
	if err := json.NewDecoder(first.Body).Decode(&a); err != nil {
		t.Fatalf("decode first booking: %v", err)
	}

	second := postJSON(t, ts.URL+"/api/v1/bookings", payload, headers)
	defer second.Body.Close()
	if second.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for replay, got %d", second.StatusCode)
	}
	var b models.Booking
	if err := json.NewDecoder(second.Body).Decode(&b); err != nil {
		t.Fatalf("decode second booking: %v", err)
	}
	if a.ID != b.ID {
		t.Fatalf("replay created a new booking: %s vs %s", a.ID, b.ID)
	}
}

func TestScanEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, openConfig())
	facility := createFacility(t, ts, "Pool")
	booking := createBooking(t, ts, facility.ID, 10)
	approved := approveBooking(t, ts, booking.ID)

	resp := postJSON(t, ts.URL+"/api/v1/scan", map[string]string{
		"code":        approved.TicketCode,
		"operator_id": "gate-1",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("scan: unexpected status %d", resp.StatusCode)
	}
	var result struct {
		Action  string         `json:"action"`
		Booking models.Booking `json:"booking"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode scan result: %v", err)
	}
	if result.Action != "check_in" {
		t.Fatalf("expected check_in, got %s", result.Action)
	}
	if result.Booking.Status != models.StatusCheckedIn {
		t.Fatalf("expected checked_in booking, got %s", result.Booking.Status)
	}

	bad := postJSON(t, ts.URL+"/api/v1/scan", map[string]string{
		"code":        "TK-00000000-XXXXX",
		"operator_id": "gate-1",
	}, nil)
	defer bad.Body.Close()
	if bad.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown ticket, got %d", bad.StatusCode)
	}
}

func TestTicketQREndpoint(t *testing.T) {
	ts, _ := newTestServer(t, openConfig())
	facility := createFacility(t, ts, "Court")
	booking := createBooking(t, ts, facility.ID, 11)

	resp, err := http.Get(ts.URL + "/api/v1/bookings/" + booking.ID + "/ticket.png")
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before approval, got %d", resp.StatusCode)
	}

	approveBooking(t, ts, booking.ID)

	resp, err = http.Get(ts.URL + "/api/v1/bookings/" + booking.ID + "/ticket.png")
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %s", ct)
	}
	raw, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(raw, []byte("\x89PNG")) {
		t.Fatalf("response is not a PNG")
	}
}

func TestCancelForbiddenForStranger(t *testing.T) {
	ts, _ := newTestServer(t, openConfig())
	facility := createFacility(t, ts, "Hall")
	booking := createBooking(t, ts, facility.ID, 12)

	resp := postJSON(t, ts.URL+"/api/v1/bookings/"+booking.ID+"/cancel", map[string]string{"requester_id": "someone-else"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestFacilityScheduleAndStatus(t *testing.T) {
	ts, _ := newTestServer(t, openConfig())
	facility := createFacility(t, ts, "Annex")
	createBooking(t, ts, facility.ID, 10)

	from, _ := slot(8)
	url := fmt.Sprintf("%s/api/v1/facilities/%s/bookings?from=%s", ts.URL, facility.ID, from.Format(time.RFC3339))
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	defer resp.Body.Close()
	var bookings []models.Booking
	if err := json.NewDecoder(resp.Body).Decode(&bookings); err != nil {
		t.Fatalf("decode schedule: %v", err)
	}
	if len(bookings) != 1 {
		t.Fatalf("expected 1 booking in schedule, got %d", len(bookings))
	}

	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/api/v1/facilities/"+facility.ID+"/status", bytes.NewBufferString(`{"active":false}`))
	req.Header.Set("Content-Type", "application/json")
	patchResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("patch status: %v", err)
	}
	defer patchResp.Body.Close()
	var updated models.Facility
	if err := json.NewDecoder(patchResp.Body).Decode(&updated); err != nil {
		t.Fatalf("decode facility: %v", err)
	}
	if updated.IsActive {
		t.Fatalf("expected facility to be inactive")
	}

	start, end := slot(13)
	blocked := postJSON(t, ts.URL+"/api/v1/bookings", map[string]any{
		"facility_id":  facility.ID,
		"requester_id": "student-9",
		"start_time":   start,
		"end_time":     end,
	}, nil)
	defer blocked.Body.Close()
	if blocked.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for inactive facility, got %d", blocked.StatusCode)
	}
}

func TestAttendanceExport(t *testing.T) {
	ts, _ := newTestServer(t, openConfig())
	facility := createFacility(t, ts, "Workshop")
	booking := createBooking(t, ts, facility.ID, 10)
	approveBooking(t, ts, booking.ID)

	from, _ := slot(8)
	to := from.Add(8 * time.Hour)
	url := fmt.Sprintf("%s/api/v1/attendance/export?from=%s&to=%s",
		ts.URL, from.Format(time.RFC3339), to.Format(time.RFC3339))
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd == "" {
		t.Fatalf("expected a Content-Disposition header")
	}
	raw, _ := io.ReadAll(resp.Body)
	// XLSX files are zip archives
	if !bytes.HasPrefix(raw, []byte("PK")) {
		t.Fatalf("response is not an XLSX file")
	}
}

func TestStatsAndSweep(t *testing.T) {
	ts, _ := newTestServer(t, openConfig())
	facility := createFacility(t, ts, "Atrium")
	createBooking(t, ts, facility.ID, 10)

	resp, err := http.Get(ts.URL + "/api/v1/stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	defer resp.Body.Close()
	var stats struct {
		ByStatus map[string]int64 `json:"by_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.ByStatus["pending"] != 1 {
		t.Fatalf("expected 1 pending booking, got %d", stats.ByStatus["pending"])
	}

	sweep := postJSON(t, ts.URL+"/api/v1/sweep", map[string]any{}, nil)
	defer sweep.Body.Close()
	if sweep.StatusCode != http.StatusOK {
		t.Fatalf("sweep: unexpected status %d", sweep.StatusCode)
	}
	var result map[string]int64
	if err := json.NewDecoder(sweep.Body).Decode(&result); err != nil {
		t.Fatalf("decode sweep result: %v", err)
	}
	if result["finalized"] != 0 {
		t.Fatalf("expected nothing to finalize, got %d", result["finalized"])
	}
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys: []config.APIClientKey{
				{Key: "reader-key", Name: "dashboard", Permissions: []string{"read"}},
				{Key: "admin-key", Name: "registrar", Permissions: []string{"read", "admin"}},
			},
		},
	}
	ts, _ := newTestServer(t, cfg)

	resp, err := http.Get(ts.URL + "/api/v1/facilities")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/facilities", nil)
	req.Header.Set("x-api-key", "reader-key")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with reader key, got %d", resp.StatusCode)
	}

	// reader key cannot create facilities
	resp = postJSON(t, ts.URL+"/api/v1/facilities", map[string]any{"name": "X"}, map[string]string{"x-api-key": "reader-key"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for reader key, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/v1/facilities", map[string]any{"name": "X"}, map[string]string{"x-api-key": "admin-key"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for admin key, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected health check to bypass auth, got %d", resp.StatusCode)
	}
}
