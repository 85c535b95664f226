package service

import (
	"context"
	"time"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/domain"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/events"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
	"github.com/farmatrack/farmatrack-backend/pkg/errors"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
)

// LedgerService handles lot lifecycle business logic
type LedgerService struct {
	lotRepo        *repository.LotRepository
	medicationRepo *repository.MedicationRepository
	publisher      *events.PharmacyEventPublisher
	thresholds     domain.Thresholds
	logger         *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	lotRepo *repository.LotRepository,
	medicationRepo *repository.MedicationRepository,
	publisher *events.PharmacyEventPublisher,
	thresholds domain.Thresholds,
	log *logger.Logger,
) *LedgerService {
	return &LedgerService{
		lotRepo:        lotRepo,
		medicationRepo: medicationRepo,
		publisher:      publisher,
		thresholds:     thresholds,
		logger:         log,
	}
}

// CreateLotInput carries the fields for receiving a new batch
type CreateLotInput struct {
	MedicationID    string     `json:"medication_id" validate:"required,uuid"`
	LotNumber       string     `json:"lot_number" validate:"required,min=1,max=100"`
	InitialQuantity int        `json:"initial_quantity" validate:"required,gt=0"`
	ManufactureDate *time.Time `json:"manufacture_date,omitempty"`
	ExpiryDate      time.Time  `json:"expiry_date" validate:"required"`
	Note            *string    `json:"note,omitempty"`
}

// CreateLot receives a batch into stock. The batch starts with its full
// initial quantity; batches already expired at asOf are rejected.
func (s *LedgerService) CreateLot(ctx context.Context, input CreateLotInput, asOf time.Time) (*repository.Lot, error) {
	if domain.ExpiryStatus(input.ExpiryDate, asOf, 0) == domain.StatusExpired {
		return nil, errors.Validation(map[string]string{
			"expiry_date": "must be today or later",
		})
	}
	if input.ManufactureDate != nil && input.ManufactureDate.After(input.ExpiryDate) {
		return nil, errors.Validation(map[string]string{
			"manufacture_date": "must not be after the expiry date",
		})
	}

	exists, err := s.medicationRepo.Exists(ctx, input.MedicationID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NotFound("medication")
	}

	lot := &repository.Lot{
		MedicationID:    input.MedicationID,
		LotNumber:       input.LotNumber,
		InitialQuantity: input.InitialQuantity,
		CurrentQuantity: input.InitialQuantity,
		ManufactureDate: input.ManufactureDate,
		ExpiryDate:      input.ExpiryDate,
		Note:            input.Note,
	}

	if err := s.lotRepo.Create(ctx, lot); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("lot_id", lot.ID).
		Str("lot_number", lot.LotNumber).
		Int("initial_quantity", lot.InitialQuantity).
		Msg("lot received into stock")

	s.publisher.PublishLotCreated(ctx, lot)

	return lot, nil
}

// GetLot gets a lot with its status at asOf
func (s *LedgerService) GetLot(ctx context.Context, id string, asOf time.Time) (*repository.LotWithMedication, error) {
	lot, err := s.lotRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.attachStatus(lot, asOf)
	return lot, nil
}

// GetLotByNumber gets a lot by its lot number with its status at asOf
func (s *LedgerService) GetLotByNumber(ctx context.Context, lotNumber string, asOf time.Time) (*repository.LotWithMedication, error) {
	lot, err := s.lotRepo.GetByNumber(ctx, lotNumber)
	if err != nil {
		return nil, err
	}
	s.attachStatus(lot, asOf)
	return lot, nil
}

// ListLots lists lots with their status at asOf
func (s *LedgerService) ListLots(ctx context.Context, filter repository.LotFilter, sortBy, sortDir string, page, perPage int, asOf time.Time) ([]*repository.LotWithMedication, int64, error) {
	lots, total, err := s.lotRepo.List(ctx, filter, sortBy, sortDir, page, perPage)
	if err != nil {
		return nil, 0, err
	}

	for _, lot := range lots {
		s.attachStatus(lot, asOf)
	}

	return lots, total, nil
}

// ListByMedication lists every lot of one medication with its status at asOf
func (s *LedgerService) ListByMedication(ctx context.Context, medicationID string, asOf time.Time) ([]*repository.LotWithMedication, error) {
	exists, err := s.medicationRepo.Exists(ctx, medicationID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NotFound("medication")
	}

	lots, err := s.lotRepo.ListByMedication(ctx, medicationID)
	if err != nil {
		return nil, err
	}

	for _, lot := range lots {
		s.attachStatus(lot, asOf)
	}
	return lots, nil
}

// UpdateLot applies a partial update to a lot's descriptive fields. The
// quantities are not part of the patch type: stock only moves through lot
// creation and dispensation.
func (s *LedgerService) UpdateLot(ctx context.Context, id string, patch repository.LotUpdate, asOf time.Time) (*repository.LotWithMedication, error) {
	lot, err := s.lotRepo.UpdateDetails(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.attachStatus(lot, asOf)
	return lot, nil
}

func (s *LedgerService) attachStatus(lot *repository.LotWithMedication, asOf time.Time) {
	lot.Status = domain.LotStatus(lot.ExpiryDate, lot.CurrentQuantity, asOf, s.thresholds)
}
