package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"unispace/internal/models"
)

func (db *DB) CreateFacility(ctx context.Context, f *models.Facility) error {
	now := time.Now()
	query := `INSERT INTO facilities (id, name, location, capacity, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, f.ID, f.Name, f.Location, f.Capacity, f.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to create facility: %w", err)
	}
	f.CreatedAt = now
	f.UpdatedAt = now
	return nil
}

func (db *DB) GetFacility(ctx context.Context, id string) (*models.Facility, error) {
	query := `SELECT id, name, location, capacity, is_active, created_at, updated_at
              FROM facilities WHERE id = ?`
	var f models.Facility
	err := db.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.Name, &f.Location, &f.Capacity, &f.IsActive, &f.CreatedAt, &f.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get facility: %w", err)
	}
	return &f, nil
}

func (db *DB) ListFacilities(ctx context.Context, activeOnly bool) ([]*models.Facility, error) {
	query := `SELECT id, name, location, capacity, is_active, created_at, updated_at
              FROM facilities`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name ASC`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}
	defer rows.Close()

	var facilities []*models.Facility
	for rows.Next() {
		f := &models.Facility{}
		if err := rows.Scan(&f.ID, &f.Name, &f.Location, &f.Capacity, &f.IsActive, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan facility: %w", err)
		}
		facilities = append(facilities, f)
	}
	return facilities, rows.Err()
}

func (db *DB) UpdateFacility(ctx context.Context, f *models.Facility) error {
	query := `UPDATE facilities SET name = ?, location = ?, capacity = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, f.Name, f.Location, f.Capacity, time.Now(), f.ID)
	if err != nil {
		return fmt.Errorf("failed to update facility: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SetFacilityActive toggles the active flag. Deactivation blocks new
// bookings but leaves already-approved ones untouched.
func (db *DB) SetFacilityActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE facilities SET is_active = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set facility active flag: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
