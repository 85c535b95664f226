package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/domain"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/events"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
	"github.com/farmatrack/farmatrack-backend/pkg/database"
	"github.com/farmatrack/farmatrack-backend/pkg/errors"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
)

// DispensationService registers outbound stock movements
type DispensationService struct {
	db               *database.DB
	lotRepo          *repository.LotRepository
	dispensationRepo *repository.DispensationRepository
	publisher        *events.PharmacyEventPublisher
	thresholds       domain.Thresholds
	logger           *logger.Logger
}

// NewDispensationService creates a new dispensation service
func NewDispensationService(
	db *database.DB,
	lotRepo *repository.LotRepository,
	dispensationRepo *repository.DispensationRepository,
	publisher *events.PharmacyEventPublisher,
	thresholds domain.Thresholds,
	log *logger.Logger,
) *DispensationService {
	return &DispensationService{
		db:               db,
		lotRepo:          lotRepo,
		dispensationRepo: dispensationRepo,
		publisher:        publisher,
		thresholds:       thresholds,
		logger:           log,
	}
}

// RegisterDispensationInput carries the fields for a new dispensation. The
// lot may be addressed by internal ID or by its printed lot number.
type RegisterDispensationInput struct {
	LotID              string  `json:"lot_id,omitempty" validate:"omitempty,uuid"`
	LotNumber          string  `json:"lot_number,omitempty" validate:"omitempty,max=100"`
	PatientID          string  `json:"patient_id" validate:"required,min=1,max=100"`
	PatientName        *string `json:"patient_name,omitempty" validate:"omitempty,max=255"`
	Quantity           int     `json:"quantity" validate:"required,gt=0"`
	DispensationType   string  `json:"dispensation_type" validate:"required,max=100"`
	PrescriptionNumber *string `json:"prescription_number,omitempty" validate:"omitempty,max=100"`
	Note               *string `json:"note,omitempty"`
}

// Register atomically decrements the lot's stock and records the movement.
// The two writes share one transaction: a failed insert rolls the decrement
// back, and a quantity the lot cannot cover fails the whole operation with
// the available amount in the error. The stock event fires only after commit.
func (s *DispensationService) Register(ctx context.Context, input RegisterDispensationInput) (*repository.DispensationRecord, error) {
	if input.Quantity <= 0 {
		return nil, errors.Validation(map[string]string{"quantity": "must be a positive integer"})
	}

	lot, err := s.resolveLot(ctx, input)
	if err != nil {
		return nil, err
	}

	dispensation := &repository.Dispensation{
		LotID:              lot.ID,
		PatientID:          input.PatientID,
		PatientName:        input.PatientName,
		Quantity:           input.Quantity,
		DispensationType:   input.DispensationType,
		PrescriptionNumber: input.PrescriptionNumber,
		Note:               input.Note,
	}

	var remaining int
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var txErr error
		remaining, txErr = s.lotRepo.DecrementQuantity(ctx, tx, lot.ID, input.Quantity)
		if txErr != nil {
			return txErr
		}
		return s.dispensationRepo.CreateTx(ctx, tx, dispensation)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("dispensation_id", dispensation.ID).
		Str("lot_number", lot.LotNumber).
		Int("quantity", input.Quantity).
		Int("remaining", remaining).
		Msg("dispensation registered")

	s.publisher.PublishDispensationRegistered(ctx, dispensation, lot, remaining)
	if domain.IsLowStock(remaining, s.thresholds.LowStock) {
		s.publisher.PublishLotLowStock(ctx, lot, remaining, s.thresholds.LowStock)
	}

	record := &repository.DispensationRecord{
		Dispensation:   *dispensation,
		LotNumber:      lot.LotNumber,
		MedicationID:   lot.MedicationID,
		MedicationName: lot.MedicationName,
	}
	return record, nil
}

// GetDispensation gets one movement with its lot and medication context
func (s *DispensationService) GetDispensation(ctx context.Context, id string) (*repository.DispensationRecord, error) {
	return s.dispensationRepo.GetByID(ctx, id)
}

// ListDispensations lists movements newest first
func (s *DispensationService) ListDispensations(ctx context.Context, filter repository.DispensationFilter, page, perPage int) ([]*repository.DispensationRecord, int64, error) {
	return s.dispensationRepo.List(ctx, filter, page, perPage)
}

// resolveLot finds the target lot by ID when given, otherwise by lot number.
func (s *DispensationService) resolveLot(ctx context.Context, input RegisterDispensationInput) (*repository.LotWithMedication, error) {
	switch {
	case input.LotID != "":
		return s.lotRepo.GetByID(ctx, input.LotID)
	case input.LotNumber != "":
		return s.lotRepo.GetByNumber(ctx, input.LotNumber)
	default:
		return nil, errors.Validation(map[string]string{
			"lot": "either lot_id or lot_number is required",
		})
	}
}
