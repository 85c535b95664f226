package service

import (
	"context"
	"strings"
	"time"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/domain"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
	"github.com/farmatrack/farmatrack-backend/pkg/errors"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
)

// CatalogService handles medication catalog business logic
type CatalogService struct {
	medicationRepo *repository.MedicationRepository
	lotRepo        *repository.LotRepository
	thresholds     domain.Thresholds
	logger         *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	medicationRepo *repository.MedicationRepository,
	lotRepo *repository.LotRepository,
	thresholds domain.Thresholds,
	log *logger.Logger,
) *CatalogService {
	return &CatalogService{
		medicationRepo: medicationRepo,
		lotRepo:        lotRepo,
		thresholds:     thresholds,
		logger:         log,
	}
}

// CreateMedicationInput carries the fields for a new catalog entry
type CreateMedicationInput struct {
	Name              string  `json:"name" validate:"required,min=2,max=255"`
	ActiveIngredient  *string `json:"active_ingredient,omitempty" validate:"omitempty,max=255"`
	PrescriptionClass *string `json:"prescription_class,omitempty" validate:"omitempty,max=100"`
	Manufacturer      *string `json:"manufacturer,omitempty" validate:"omitempty,max=255"`
	Description       *string `json:"description,omitempty"`
}

// MedicationWithLots is the detail view: the catalog entry plus its lots
type MedicationWithLots struct {
	*repository.Medication
	Lots       []*repository.LotWithMedication `json:"lots"`
	TotalUnits int                             `json:"total_units"`
}

// CreateMedication creates a new catalog entry
func (s *CatalogService) CreateMedication(ctx context.Context, input CreateMedicationInput) (*repository.Medication, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.Validation(map[string]string{"name": "must not be empty"})
	}

	med := &repository.Medication{
		Name:              name,
		ActiveIngredient:  input.ActiveIngredient,
		PrescriptionClass: input.PrescriptionClass,
		Manufacturer:      input.Manufacturer,
		Description:       input.Description,
	}

	if err := s.medicationRepo.Create(ctx, med); err != nil {
		return nil, err
	}

	s.logger.Info().Str("medication_id", med.ID).Str("name", med.Name).Msg("medication created")
	return med, nil
}

// GetMedication gets a medication with its lots, statuses computed at asOf
func (s *CatalogService) GetMedication(ctx context.Context, id string, asOf time.Time) (*MedicationWithLots, error) {
	med, err := s.medicationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	lots, err := s.lotRepo.ListByMedication(ctx, id)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, lot := range lots {
		lot.Status = domain.LotStatus(lot.ExpiryDate, lot.CurrentQuantity, asOf, s.thresholds)
		total += lot.CurrentQuantity
	}

	return &MedicationWithLots{
		Medication: med,
		Lots:       lots,
		TotalUnits: total,
	}, nil
}

// ListMedications lists catalog entries
func (s *CatalogService) ListMedications(ctx context.Context, filter repository.MedicationFilter, sortBy, sortDir string, page, perPage int) ([]*repository.Medication, int64, error) {
	return s.medicationRepo.List(ctx, filter, sortBy, sortDir, page, perPage)
}

// UpdateMedication applies a partial update to a catalog entry
func (s *CatalogService) UpdateMedication(ctx context.Context, id string, patch repository.MedicationUpdate) (*repository.Medication, error) {
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return nil, errors.Validation(map[string]string{"name": "must not be empty"})
		}
		patch.Name = &trimmed
	}

	med, err := s.medicationRepo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("medication_id", id).Msg("medication updated")
	return med, nil
}

// DeleteMedication removes a catalog entry. Entries with lots on the ledger
// are rejected with a conflict by the store.
func (s *CatalogService) DeleteMedication(ctx context.Context, id string) error {
	if err := s.medicationRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Str("medication_id", id).Msg("medication deleted")
	return nil
}
