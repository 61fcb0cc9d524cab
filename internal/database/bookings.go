package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"unispace/internal/models"
)

const bookingColumns = `id, facility_id, requester_id, start_time, end_time, purpose, status,
       decided_by, rejection_reason, ticket_code, checked_in_at, checked_out_at,
       actual_end_time, attendance, created_at, updated_at`

// Statuses that hold a facility slot. Overlap checks only consider these.
const blockingStatuses = `'pending', 'approved'`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	var (
		b               models.Booking
		decidedBy       sql.NullString
		rejectionReason sql.NullString
		ticketCode      sql.NullString
		attendance      sql.NullString
		checkedInAt     sql.NullTime
		checkedOutAt    sql.NullTime
		actualEndTime   sql.NullTime
	)

	err := row.Scan(
		&b.ID, &b.FacilityID, &b.RequesterID, &b.StartTime, &b.EndTime, &b.Purpose, &b.Status,
		&decidedBy, &rejectionReason, &ticketCode, &checkedInAt, &checkedOutAt,
		&actualEndTime, &attendance, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.DecidedBy = decidedBy.String
	b.RejectionReason = rejectionReason.String
	b.TicketCode = ticketCode.String
	b.Attendance = models.Attendance(attendance.String)
	if checkedInAt.Valid {
		t := checkedInAt.Time
		b.CheckedInAt = &t
	}
	if checkedOutAt.Valid {
		t := checkedOutAt.Time
		b.CheckedOutAt = &t
	}
	if actualEndTime.Valid {
		t := actualEndTime.Time
		b.ActualEndTime = &t
	}
	return &b, nil
}

// FindConflict returns the id of a pending or approved booking whose
// interval overlaps the requested one (half-open: a shared boundary is
// not a conflict). An early check-out frees the tail of the slot.
func (db *DB) FindConflict(ctx context.Context, facilityID string, iv models.Interval) (string, error) {
	query := `SELECT id FROM bookings
              WHERE facility_id = ?
                AND status IN (` + blockingStatuses + `)
                AND start_time < ?
                AND ? < COALESCE(actual_end_time, end_time)
              ORDER BY created_at ASC
              LIMIT 1`

	var id string
	err := db.QueryRowContext(ctx, query, facilityID, iv.End.UTC(), iv.Start.UTC()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to check for conflicts: %w", err)
	}
	return id, nil
}

// CreateBookingWithLock re-checks availability and inserts in a single
// transaction so two racing requests cannot both claim the slot.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	queryConflict := `SELECT id FROM bookings
              WHERE facility_id = ?
                AND status IN (` + blockingStatuses + `)
                AND start_time < ?
                AND ? < COALESCE(actual_end_time, end_time)
              LIMIT 1`
	var conflictID string
	err = tx.QueryRowContext(ctx, queryConflict,
		booking.FacilityID, booking.EndTime.UTC(), booking.StartTime.UTC()).Scan(&conflictID)
	if err == nil {
		return fmt.Errorf("%w: booking %s", ErrConflict, conflictID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check availability in tx: %w", err)
	}

	now := time.Now().UTC()
	queryInsert := `INSERT INTO bookings (
                id, facility_id, requester_id, start_time, end_time, purpose,
                status, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, queryInsert,
		booking.ID,
		booking.FacilityID,
		booking.RequesterID,
		booking.StartTime.UTC(),
		booking.EndTime.UTC(),
		booking.Purpose,
		models.StatusPending,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	booking.Status = models.StatusPending
	booking.CreatedAt = now
	booking.UpdatedAt = now

	return tx.Commit()
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (db *DB) GetBookingByTicketCode(ctx context.Context, code string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ticket_code = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidTicket
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by ticket code: %w", err)
	}
	return b, nil
}

// ApproveBooking re-validates the slot against already-approved bookings
// and flips pending to approved in one transaction, assigning the ticket
// code. A competing approval that landed first surfaces as
// ErrStaleConflict; a ticket code collision as ErrTicketCodeTaken.
func (db *DB) ApproveBooking(ctx context.Context, id, adminID, ticketCode string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var (
		status models.Status
		start  time.Time
		end    time.Time
		fac    string
	)
	queryGet := `SELECT status, start_time, end_time, facility_id FROM bookings WHERE id = ?`
	err = tx.QueryRowContext(ctx, queryGet, id).Scan(&status, &start, &end, &fac)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load booking for approval: %w", err)
	}
	if status != models.StatusPending {
		return fmt.Errorf("%w: cannot approve booking in state %q", ErrInvalidState, status)
	}

	queryStale := `SELECT id FROM bookings
              WHERE facility_id = ?
                AND id != ?
                AND status = 'approved'
                AND start_time < ?
                AND ? < COALESCE(actual_end_time, end_time)
              LIMIT 1`
	var rivalID string
	err = tx.QueryRowContext(ctx, queryStale, fac, id, end.UTC(), start.UTC()).Scan(&rivalID)
	if err == nil {
		return fmt.Errorf("%w: booking %s", ErrStaleConflict, rivalID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to re-check conflicts: %w", err)
	}

	queryUpdate := `UPDATE bookings
              SET status = 'approved', ticket_code = ?, decided_by = ?,
                  rejection_reason = NULL, updated_at = ?
              WHERE id = ? AND status = 'pending'`
	result, err := tx.ExecContext(ctx, queryUpdate, ticketCode, adminID, time.Now().UTC(), id)
	if err != nil {
		if strings.Contains(err.Error(), "ticket_code") {
			return ErrTicketCodeTaken
		}
		return fmt.Errorf("failed to approve booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: booking changed state concurrently", ErrInvalidState)
	}

	return tx.Commit()
}

func (db *DB) RejectBooking(ctx context.Context, id, adminID, reason string) error {
	query := `UPDATE bookings
              SET status = 'rejected', decided_by = ?, rejection_reason = ?, updated_at = ?
              WHERE id = ? AND status = 'pending'`
	result, err := db.ExecContext(ctx, query, adminID, nullIfEmpty(reason), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to reject booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return db.transitionFailure(ctx, id, "reject")
	}
	return nil
}

// CancelBooking is requester-initiated and valid only while pending.
func (db *DB) CancelBooking(ctx context.Context, id, requesterID string) error {
	query := `UPDATE bookings
              SET status = 'canceled', updated_at = ?
              WHERE id = ? AND requester_id = ? AND status = 'pending'`
	result, err := db.ExecContext(ctx, query, time.Now().UTC(), id, requesterID)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		booking, getErr := db.GetBooking(ctx, id)
		if getErr != nil {
			return getErr
		}
		if booking.RequesterID != requesterID {
			return ErrNotRequester
		}
		return fmt.Errorf("%w: cannot cancel booking in state %q", ErrInvalidState, booking.Status)
	}
	return nil
}

// CheckInBooking records the first redemption of a ticket. The guard on
// status makes concurrent scans of the same code yield exactly one
// check-in.
func (db *DB) CheckInBooking(ctx context.Context, id string, at time.Time, attendance models.Attendance) error {
	query := `UPDATE bookings
              SET status = 'checked_in', checked_in_at = ?, attendance = ?, updated_at = ?
              WHERE id = ? AND status = 'approved'`
	result, err := db.ExecContext(ctx, query, at.UTC(), string(attendance), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to check in booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: booking is not awaiting check-in", ErrInvalidState)
	}
	return nil
}

// CheckOutBooking records the second redemption and finalizes the
// booking. Classification is untouched: it was fixed at check-in.
func (db *DB) CheckOutBooking(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE bookings
              SET status = 'completed', checked_out_at = ?, actual_end_time = ?, updated_at = ?
              WHERE id = ? AND status = 'checked_in'`
	result, err := db.ExecContext(ctx, query, at.UTC(), at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to check out booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: booking is not checked in", ErrInvalidState)
	}
	return nil
}

// ListBookingsForFacility returns bookings whose scheduled interval
// intersects [from, to), ordered by scheduled start.
func (db *DB) ListBookingsForFacility(ctx context.Context, facilityID string, from, to time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE facility_id = ? AND start_time < ? AND ? < end_time
              ORDER BY start_time ASC`
	rows, err := db.QueryContext(ctx, query, facilityID, to.UTC(), from.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list facility bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (db *DB) ListBookingsForRequester(ctx context.Context, requesterID string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE requester_id = ?
              ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requester bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// FinalizeNoShows closes approved bookings whose window elapsed without
// any check-in. Safe to re-run: the status guard makes it a no-op the
// second time.
func (db *DB) FinalizeNoShows(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE bookings
              SET status = 'completed', attendance = 'no_show',
                  actual_end_time = end_time, updated_at = ?
              WHERE status = 'approved' AND end_time <= ?`
	result, err := db.ExecContext(ctx, query, time.Now().UTC(), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to finalize no-shows: %w", err)
	}
	return result.RowsAffected()
}

// CloseExpiredCheckIns completes checked-in bookings that never scanned
// out, closing them at the scheduled end. The check-in classification is
// preserved.
func (db *DB) CloseExpiredCheckIns(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE bookings
              SET status = 'completed', checked_out_at = end_time,
                  actual_end_time = end_time, updated_at = ?
              WHERE status = 'checked_in' AND end_time <= ?`
	result, err := db.ExecContext(ctx, query, time.Now().UTC(), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to close expired check-ins: %w", err)
	}
	return result.RowsAffected()
}

// AttendanceLog returns bookings relevant for attendance reporting,
// optionally filtered by classification.
func (db *DB) AttendanceLog(ctx context.Context, from, to time.Time, classification models.Attendance) ([]*models.Booking, error) {
	query := `SELECT b.id, b.facility_id, b.requester_id, b.start_time, b.end_time, b.purpose, b.status,
                     b.decided_by, b.rejection_reason, b.ticket_code, b.checked_in_at, b.checked_out_at,
                     b.actual_end_time, b.attendance, b.created_at, b.updated_at, f.name
              FROM bookings b
              JOIN facilities f ON b.facility_id = f.id
              WHERE b.status IN ('approved', 'checked_in', 'completed')
                AND b.start_time >= ? AND b.start_time < ?`
	args := []any{from.UTC(), to.UTC()}

	if classification != models.AttendanceUnset {
		query += ` AND b.attendance = ?`
		args = append(args, string(classification))
	}
	query += ` ORDER BY b.start_time ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance log: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		var (
			b               models.Booking
			decidedBy       sql.NullString
			rejectionReason sql.NullString
			ticketCode      sql.NullString
			attendance      sql.NullString
			checkedInAt     sql.NullTime
			checkedOutAt    sql.NullTime
			actualEndTime   sql.NullTime
		)
		err := rows.Scan(
			&b.ID, &b.FacilityID, &b.RequesterID, &b.StartTime, &b.EndTime, &b.Purpose, &b.Status,
			&decidedBy, &rejectionReason, &ticketCode, &checkedInAt, &checkedOutAt,
			&actualEndTime, &attendance, &b.CreatedAt, &b.UpdatedAt, &b.FacilityName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance row: %w", err)
		}
		b.DecidedBy = decidedBy.String
		b.RejectionReason = rejectionReason.String
		b.TicketCode = ticketCode.String
		b.Attendance = models.Attendance(attendance.String)
		if checkedInAt.Valid {
			t := checkedInAt.Time
			b.CheckedInAt = &t
		}
		if checkedOutAt.Valid {
			t := checkedOutAt.Time
			b.CheckedOutAt = &t
		}
		if actualEndTime.Valid {
			t := actualEndTime.Time
			b.ActualEndTime = &t
		}
		bookings = append(bookings, &b)
	}
	return bookings, rows.Err()
}

// CountByStatus aggregates bookings per lifecycle state for dashboards.
func (db *DB) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int64)
	for rows.Next() {
		var status models.Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// CountByAttendance aggregates finalized classifications.
func (db *DB) CountByAttendance(ctx context.Context) (map[models.Attendance]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT attendance, COUNT(*) FROM bookings WHERE attendance IS NOT NULL AND attendance != '' GROUP BY attendance`)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings by attendance: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Attendance]int64)
	for rows.Next() {
		var class models.Attendance
		var n int64
		if err := rows.Scan(&class, &n); err != nil {
			return nil, fmt.Errorf("failed to scan attendance count: %w", err)
		}
		counts[class] = n
	}
	return counts, rows.Err()
}

func collectBookings(rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) transitionFailure(ctx context.Context, id, action string) error {
	booking, err := db.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: cannot %s booking in state %q", ErrInvalidState, action, booking.Status)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
