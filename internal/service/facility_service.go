package service

import (
	"context"
	"errors"
	"time"

	"unispace/internal/database"
	"unispace/internal/domain"
	"unispace/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type FacilityService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewFacilityService(repo domain.Repository, logger *zerolog.Logger) *FacilityService {
	return &FacilityService{repo: repo, logger: logger}
}

func (s *FacilityService) CreateFacility(ctx context.Context, f *models.Facility) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	f.IsActive = true
	return s.repo.CreateFacility(ctx, f)
}

func (s *FacilityService) GetFacility(ctx context.Context, id string) (*models.Facility, error) {
	return s.repo.GetFacility(ctx, id)
}

func (s *FacilityService) ListFacilities(ctx context.Context, activeOnly bool) ([]*models.Facility, error) {
	return s.repo.ListFacilities(ctx, activeOnly)
}

func (s *FacilityService) UpdateFacility(ctx context.Context, f *models.Facility) error {
	f.UpdatedAt = time.Now().UTC()
	return s.repo.UpdateFacility(ctx, f)
}

// SetFacilityActive flips availability for new bookings. Deactivation
// leaves existing bookings untouched.
func (s *FacilityService) SetFacilityActive(ctx context.Context, id string, active bool) error {
	return s.repo.SetFacilityActive(ctx, id, active)
}

// Seed ensures the facilities declared in config exist. Existing rows
// win over config on everything except name and capacity.
func (s *FacilityService) Seed(ctx context.Context, facilities []models.Facility) error {
	for i := range facilities {
		f := facilities[i]
		existing, err := s.repo.GetFacility(ctx, f.ID)
		if errors.Is(err, database.ErrNotFound) {
			if f.Capacity == 0 {
				f.Capacity = 1
			}
			if err := s.CreateFacility(ctx, &f); err != nil {
				return err
			}
			s.logger.Info().Str("facility_id", f.ID).Str("name", f.Name).Msg("seeded facility")
			continue
		}
		if err != nil {
			return err
		}

		if existing.Name != f.Name || existing.Capacity != f.Capacity {
			existing.Name = f.Name
			if f.Capacity > 0 {
				existing.Capacity = f.Capacity
			}
			if err := s.UpdateFacility(ctx, existing); err != nil {
				return err
			}
		}
	}
	return nil
}
