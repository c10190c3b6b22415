package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type Currency string

func (c Currency) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// PaymentRecord is the local mirror of a processor payment intent.
// RemotePaymentID is set once at creation and is the join key for
// reconciliation; Status is the only field the reconciler mutates.
type PaymentRecord struct {
	ID              uuid.UUID
	RemotePaymentID string
	OwnerID         uuid.UUID
	Amount          int64
	Currency        Currency
	Status          PaymentStatus
	Description     *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
