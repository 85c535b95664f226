package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MedicationFixture represents test medication data
type MedicationFixture struct {
	ID                string
	Name              string
	ActiveIngredient  string
	PrescriptionClass string
	Manufacturer      string
	Description       string
	CreatedAt         time.Time
}

// LotFixture represents test lot data
type LotFixture struct {
	ID              string
	MedicationID    string
	LotNumber       string
	InitialQuantity int
	CurrentQuantity int
	ExpiryDate      time.Time
	CreatedAt       time.Time
}

// UserFixture represents test operator data
type UserFixture struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Medication creates a medication fixture with defaults
func (f *FixtureFactory) Medication(opts ...func(*MedicationFixture)) MedicationFixture {
	seq := f.nextSeq()

	med := MedicationFixture{
		ID:                uuid.New().String(),
		Name:              fmt.Sprintf("Test Medication %d", seq),
		ActiveIngredient:  fmt.Sprintf("Ingredient %d", seq),
		PrescriptionClass: "OTC",
		Manufacturer:      "Test Pharma",
		Description:       "Test medication",
		CreatedAt:         time.Now(),
	}

	for _, opt := range opts {
		opt(&med)
	}

	return med
}

// WithMedicationName sets the medication name
func WithMedicationName(name string) func(*MedicationFixture) {
	return func(m *MedicationFixture) {
		m.Name = name
	}
}

// WithPrescriptionClass sets the prescription class
func WithPrescriptionClass(class string) func(*MedicationFixture) {
	return func(m *MedicationFixture) {
		m.PrescriptionClass = class
	}
}

// Lot creates a lot fixture with defaults: full stock, expiry a year out
func (f *FixtureFactory) Lot(medicationID string, opts ...func(*LotFixture)) LotFixture {
	seq := f.nextSeq()

	lot := LotFixture{
		ID:              uuid.New().String(),
		MedicationID:    medicationID,
		LotNumber:       fmt.Sprintf("LOT-%04d", seq),
		InitialQuantity: 100,
		CurrentQuantity: 100,
		ExpiryDate:      time.Now().AddDate(1, 0, 0),
		CreatedAt:       time.Now(),
	}

	for _, opt := range opts {
		opt(&lot)
	}

	return lot
}

// WithQuantities sets the lot's initial and current quantities
func WithQuantities(initial, current int) func(*LotFixture) {
	return func(l *LotFixture) {
		l.InitialQuantity = initial
		l.CurrentQuantity = current
	}
}

// WithExpiry sets the lot's expiry date
func WithExpiry(expiry time.Time) func(*LotFixture) {
	return func(l *LotFixture) {
		l.ExpiryDate = expiry
	}
}

// WithLotNumber sets the lot number
func WithLotNumber(lotNumber string) func(*LotFixture) {
	return func(l *LotFixture) {
		l.LotNumber = lotNumber
	}
}

// User creates a user fixture with defaults
func (f *FixtureFactory) User(opts ...func(*UserFixture)) UserFixture {
	seq := f.nextSeq()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)

	user := UserFixture{
		ID:           uuid.New().String(),
		Name:         fmt.Sprintf("Test User %d", seq),
		Email:        fmt.Sprintf("user%d@farmatrack.test", seq),
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(&user)
	}

	return user
}

// WithEmail sets the user email
func WithEmail(email string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.Email = email
	}
}

// WithPassword sets the user password (hashed)
func WithPassword(password string) func(*UserFixture) {
	return func(u *UserFixture) {
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		u.PasswordHash = string(hash)
	}
}
