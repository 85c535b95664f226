package events

import (
	"context"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
	"github.com/farmatrack/farmatrack-backend/pkg/messaging"
)

// eventSink is what the publisher needs from the messaging layer. Tests
// substitute an in-memory recorder.
type eventSink interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// PharmacyEventPublisher publishes pharmacy-related events
type PharmacyEventPublisher struct {
	sink   eventSink
	logger *logger.Logger
}

// NewPharmacyEventPublisher creates a new pharmacy event publisher
func NewPharmacyEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*PharmacyEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangePharmacyEvents, "pharmacy-service", log)
	if err != nil {
		return nil, err
	}

	return &PharmacyEventPublisher{
		sink:   publisher,
		logger: log,
	}, nil
}

// NewPharmacyEventPublisherWithSink wires a custom sink, used in tests
func NewPharmacyEventPublisherWithSink(sink eventSink, log *logger.Logger) *PharmacyEventPublisher {
	return &PharmacyEventPublisher{
		sink:   sink,
		logger: log,
	}
}

// PublishDispensationRegistered publishes a dispensation registered event.
// Called only after the dispensation transaction committed.
func (p *PharmacyEventPublisher) PublishDispensationRegistered(ctx context.Context, d *repository.Dispensation, lot *repository.LotWithMedication, remaining int) {
	if p == nil {
		return
	}

	data := messaging.DispensationRegisteredEvent{
		DispensationID: d.ID,
		LotID:          lot.ID,
		LotNumber:      lot.LotNumber,
		MedicationID:   lot.MedicationID,
		Quantity:       d.Quantity,
		RemainingQty:   remaining,
		DispensedAt:    d.DispensedAt,
	}

	if err := p.sink.Publish(ctx, messaging.EventDispensationRegistered, data); err != nil {
		p.logger.Error().Err(err).Str("dispensation_id", d.ID).Msg("failed to publish dispensation registered event")
	}
}

// PublishLotLowStock publishes a low stock event for a lot
func (p *PharmacyEventPublisher) PublishLotLowStock(ctx context.Context, lot *repository.LotWithMedication, remaining, threshold int) {
	if p == nil {
		return
	}

	data := messaging.LotLowStockEvent{
		LotID:        lot.ID,
		LotNumber:    lot.LotNumber,
		MedicationID: lot.MedicationID,
		RemainingQty: remaining,
		Threshold:    threshold,
	}

	if err := p.sink.Publish(ctx, messaging.EventLotLowStock, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to publish lot low stock event")
	}
}

// PublishLotCreated publishes a lot created event
func (p *PharmacyEventPublisher) PublishLotCreated(ctx context.Context, lot *repository.Lot) {
	if p == nil {
		return
	}

	data := messaging.LotCreatedEvent{
		LotID:           lot.ID,
		LotNumber:       lot.LotNumber,
		MedicationID:    lot.MedicationID,
		InitialQuantity: lot.InitialQuantity,
		ExpiryDate:      lot.ExpiryDate,
	}

	if err := p.sink.Publish(ctx, messaging.EventLotCreated, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to publish lot created event")
	}
}
