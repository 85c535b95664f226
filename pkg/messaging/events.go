package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventDispensationRegistered = "pharmacy.dispensation.registered"
	EventLotLowStock            = "pharmacy.lot.low_stock"
	EventLotCreated             = "pharmacy.lot.created"
)

// Exchange names
const (
	ExchangePharmacyEvents = "pharmacy.events"
)

// Event is the base event structure published to the exchange
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given payload
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
		Data:          payload,
	}, nil
}

// DispensationRegisteredEvent is published after a dispensation commits
type DispensationRegisteredEvent struct {
	DispensationID string    `json:"dispensation_id"`
	LotID          string    `json:"lot_id"`
	LotNumber      string    `json:"lot_number"`
	MedicationID   string    `json:"medication_id"`
	Quantity       int       `json:"quantity"`
	RemainingQty   int       `json:"remaining_quantity"`
	DispensedAt    time.Time `json:"dispensed_at"`
}

// LotLowStockEvent is published when a dispensation drops a lot below the
// configured low-stock threshold
type LotLowStockEvent struct {
	LotID        string `json:"lot_id"`
	LotNumber    string `json:"lot_number"`
	MedicationID string `json:"medication_id"`
	RemainingQty int    `json:"remaining_quantity"`
	Threshold    int    `json:"threshold"`
}

// LotCreatedEvent is published when a new batch is received into stock
type LotCreatedEvent struct {
	LotID           string    `json:"lot_id"`
	LotNumber       string    `json:"lot_number"`
	MedicationID    string    `json:"medication_id"`
	InitialQuantity int       `json:"initial_quantity"`
	ExpiryDate      time.Time `json:"expiry_date"`
}
