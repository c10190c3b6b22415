package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mreyes-dev/payflow/internal/domain"
	"github.com/mreyes-dev/payflow/internal/logging"
	"github.com/mreyes-dev/payflow/internal/processor"
)

type paymentRepo interface {
	Create(ctx context.Context, p *domain.PaymentRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRecord, error)
}

type processorClient interface {
	CreateIntent(ctx context.Context, req processor.IntentRequest) (*processor.Intent, error)
	ConfirmIntent(ctx context.Context, remoteID, paymentMethodRef string) (*processor.Intent, error)
}

// PaymentService is the thin shim between the API and the processor: it
// delegates money movement entirely and only keeps the local record the
// reconciliation engine later settles.
type PaymentService struct {
	payments paymentRepo
	proc     processorClient
}

func NewPaymentService(payments paymentRepo, proc processorClient) *PaymentService {
	return &PaymentService{payments: payments, proc: proc}
}

type CreatePaymentRequest struct {
	OwnerID          uuid.UUID
	Amount           int64
	Currency         domain.Currency
	Description      string
	CustomerRef      string
	PaymentMethodRef string
}

func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*domain.PaymentRecord, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if !req.Currency.IsValid() {
		return nil, domain.ErrInvalidCurrency
	}

	intent, err := s.proc.CreateIntent(ctx, processor.IntentRequest{
		Amount:           req.Amount,
		Currency:         req.Currency,
		Description:      req.Description,
		CustomerRef:      req.CustomerRef,
		PaymentMethodRef: req.PaymentMethodRef,
	})
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	now := time.Now().UTC()
	rec := &domain.PaymentRecord{
		ID:              uuid.New(),
		RemotePaymentID: intent.ID,
		OwnerID:         req.OwnerID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Status:          domain.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Description != "" {
		d := req.Description
		rec.Description = &d
	}

	if err := s.payments.Create(ctx, rec); err != nil {
		// The intent exists remotely but the local record does not; the
		// sweeper cannot find it, so surface the failure loudly.
		logging.FromContext(ctx).Error("local record creation failed after intent creation",
			"remote_payment_id", intent.ID,
			"error", err,
		)
		return nil, fmt.Errorf("Create: %w", err)
	}
	return rec, nil
}

// Confirm passes through to the processor. The local status is deliberately
// not written here: reconciliation (webhook or sweeper) is the single writer
// of status, so a lost sync response cannot fork the record's history.
func (s *PaymentService) Confirm(ctx context.Context, paymentID, ownerID uuid.UUID, paymentMethodRef string) (*processor.Intent, error) {
	rec, err := s.getOwned(ctx, paymentID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("Confirm: %w", err)
	}

	intent, err := s.proc.ConfirmIntent(ctx, rec.RemotePaymentID, paymentMethodRef)
	if err != nil {
		return nil, fmt.Errorf("Confirm: %w", err)
	}
	return intent, nil
}

func (s *PaymentService) GetForOwner(ctx context.Context, paymentID, ownerID uuid.UUID) (*domain.PaymentRecord, error) {
	rec, err := s.getOwned(ctx, paymentID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("GetForOwner: %w", err)
	}
	return rec, nil
}

func (s *PaymentService) getOwned(ctx context.Context, paymentID, ownerID uuid.UUID) (*domain.PaymentRecord, error) {
	rec, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != ownerID {
		// Existence of another owner's payment is not disclosed.
		return nil, domain.ErrNotFound
	}
	return rec, nil
}
